package models

import "time"

// DateLayout is the calendar-day key used by every record type.
const DateLayout = "2006-01-02"

// StepData is one day of step aggregates. Distance is in km.
type StepData struct {
	Date      string   `json:"date"`
	Steps     float64  `json:"steps"`
	Distance  *float64 `json:"distance,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`
	Calories  *float64 `json:"calories,omitempty"`
}

// SleepData is one recorded sleep session. Date is the night label, i.e. the
// calendar day the session ended on. All durations are seconds.
type SleepData struct {
	Date            string         `json:"date"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	Duration        float64        `json:"duration"`
	Deep            *float64       `json:"deep,omitempty"`
	Light           *float64       `json:"light,omitempty"`
	REM             *float64       `json:"rem,omitempty"`
	Awake           *float64       `json:"awake,omitempty"`
	Score           *float64       `json:"score,omitempty"`
	HRAverage       *float64       `json:"hrAverage,omitempty"`
	HRMin           *float64       `json:"hrMin,omitempty"`
	HRMax           *float64       `json:"hrMax,omitempty"`
	TimeToSleep     *float64       `json:"timeToSleep,omitempty"`
	TimeToWake      *float64       `json:"timeToWake,omitempty"`
	Snoring         *float64       `json:"snoring,omitempty"`
	SnoringEpisodes *float64       `json:"snoringEpisodes,omitempty"`
	WakeCount       *float64       `json:"wakeCount,omitempty"`
	Device          DeviceCategory `json:"device"`
}

// AsleepAt returns the moment the sleeper fell asleep: start plus latency.
func (s SleepData) AsleepAt() (time.Time, bool) {
	if s.Start.IsZero() {
		return time.Time{}, false
	}
	t := s.Start
	if s.TimeToSleep != nil {
		t = t.Add(time.Duration(*s.TimeToSleep * float64(time.Second)))
	}
	return t, true
}

// WakeAt returns the moment the sleeper woke up: end minus time-to-wake.
func (s SleepData) WakeAt() (time.Time, bool) {
	if s.End.IsZero() {
		return time.Time{}, false
	}
	t := s.End
	if s.TimeToWake != nil {
		t = t.Add(-time.Duration(*s.TimeToWake * float64(time.Second)))
	}
	return t, true
}

// WeightData is one weigh-in. Masses in kg, hydration in kg.
type WeightData struct {
	Date       string   `json:"date"`
	Weight     float64  `json:"weight"`
	FatMass    *float64 `json:"fatMass,omitempty"`
	BoneMass   *float64 `json:"boneMass,omitempty"`
	MuscleMass *float64 `json:"muscleMass,omitempty"`
	Hydration  *float64 `json:"hydration,omitempty"`
}

// BloodPressureData is one blood pressure reading in mmHg.
type BloodPressureData struct {
	Date      string   `json:"date"`
	Systolic  float64  `json:"systolic"`
	Diastolic float64  `json:"diastolic"`
	HeartRate *float64 `json:"heartRate,omitempty"`
}

// HeightData is one height measurement in meters.
type HeightData struct {
	Date   string  `json:"date"`
	Height float64 `json:"height"`
}

// SpO2Data is one blood oxygen saturation reading in percent.
type SpO2Data struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ActivityData is one tracked activity. ActiveTime is seconds, distance km.
type ActivityData struct {
	Date       string     `json:"date"`
	Type       string     `json:"type,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	ActiveTime float64    `json:"activeTime"`
	Steps      float64    `json:"steps"`
	Distance   *float64   `json:"distance,omitempty"`
	Calories   *float64   `json:"calories,omitempty"`
	Elevation  *float64   `json:"elevation,omitempty"`
	HRAverage  *float64   `json:"hrAverage,omitempty"`
}

// PatternEvent is a user annotation on the timeline. EndDate is empty for
// point-in-time events.
type PatternEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type,omitempty"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
	Color     string `json:"color,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// LastDate returns the inclusive end of the event's date range.
func (e PatternEvent) LastDate() string {
	if e.EndDate == "" || e.EndDate < e.StartDate {
		return e.StartDate
	}
	return e.EndDate
}
