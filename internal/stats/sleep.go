package stats

import (
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/claude/healthmerge/internal/models"
)

// CountingMode decides how a night recorded by both a bed mat and a tracker
// is reduced to one set of values.
type CountingMode string

const (
	// MatFirst takes each field from the bed record, falling back to the tracker.
	MatFirst CountingMode = "mat-first"
	// TrackerFirst takes each field from the tracker, falling back to the bed record.
	TrackerFirst CountingMode = "tracker-first"
	// Average takes the mean of both records per field.
	Average CountingMode = "average"

	DefaultCountingMode = MatFirst
)

var ErrUnknownMode = errors.New("unknown counting mode")

// CountingModes lists every supported mode.
var CountingModes = []CountingMode{MatFirst, TrackerFirst, Average}

// ParseCountingMode accepts a mode name; empty selects the default.
func ParseCountingMode(s string) (CountingMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultCountingMode, nil
	}
	for _, m := range CountingModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// NightPair joins the records of one night by device category. Either side
// may be nil.
type NightPair struct {
	Date    string
	Bed     *models.SleepData
	Tracker *models.SleepData
}

// Night is one reconciled night. Clock positions are minutes after midnight.
type Night struct {
	Date            string                  `json:"date"`
	Devices         []models.DeviceCategory `json:"devices"`
	Duration        *float64                `json:"duration,omitempty"`
	Deep            *float64                `json:"deep,omitempty"`
	Light           *float64                `json:"light,omitempty"`
	REM             *float64                `json:"rem,omitempty"`
	Awake           *float64                `json:"awake,omitempty"`
	Score           *float64                `json:"score,omitempty"`
	HRAverage       *float64                `json:"hr_average,omitempty"`
	HRMin           *float64                `json:"hr_min,omitempty"`
	HRMax           *float64                `json:"hr_max,omitempty"`
	TimeToSleep     *float64                `json:"time_to_sleep,omitempty"`
	TimeToWake      *float64                `json:"time_to_wake,omitempty"`
	Snoring         *float64                `json:"snoring,omitempty"`
	SnoringEpisodes *float64                `json:"snoring_episodes,omitempty"`
	WakeCount       *float64                `json:"wake_count,omitempty"`
	AsleepAt        *float64                `json:"asleep_at,omitempty"`
	WakeAt          *float64                `json:"wake_at,omitempty"`
}

// PairNights groups records by night label in first-seen order. When a
// category has several sessions on one night the longest one is kept.
// Records without a known category count as tracker records.
func PairNights(records []models.SleepData) []NightPair {
	nights := orderedmap.New[string, *NightPair]()
	for i := range records {
		r := &records[i]
		if r.Date == "" {
			continue
		}
		p, ok := nights.Get(r.Date)
		if !ok {
			p = &NightPair{Date: r.Date}
			nights.Set(r.Date, p)
		}
		slot := &p.Tracker
		if r.Device == models.DeviceBed {
			slot = &p.Bed
		}
		if *slot == nil || r.Duration > (*slot).Duration {
			*slot = r
		}
	}

	out := make([]NightPair, 0, nights.Len())
	for pair := nights.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, *pair.Value)
	}
	return out
}

type sleepField func(s *models.SleepData) *float64

func fieldOf(s *models.SleepData, get sleepField) *float64 {
	if s == nil {
		return nil
	}
	return get(s)
}

// pick resolves one field of a pair under mode.
func pick(mode CountingMode, bed, tracker *float64) *float64 {
	switch mode {
	case TrackerFirst:
		bed, tracker = tracker, bed
	case Average:
		return AverageMetric([]*float64{bed, tracker})
	}
	if isFinite(bed) {
		v := *bed
		return &v
	}
	if isFinite(tracker) {
		v := *tracker
		return &v
	}
	return nil
}

// pickClock is pick for time-of-day fields; averages are circular.
func pickClock(mode CountingMode, bed, tracker *float64) *float64 {
	if mode != Average {
		return pick(mode, bed, tracker)
	}
	ct := AverageClock([]*float64{bed, tracker})
	if ct == nil {
		return nil
	}
	return &ct.Minutes
}

func asleepMinute(s *models.SleepData) *float64 {
	t, ok := s.AsleepAt()
	if !ok {
		return nil
	}
	m := minuteOfDay(t)
	return &m
}

func wakeMinute(s *models.SleepData) *float64 {
	t, ok := s.WakeAt()
	if !ok {
		return nil
	}
	m := minuteOfDay(t)
	return &m
}

// ReconcileNight reduces a pair to one night, field by field.
func ReconcileNight(p NightPair, mode CountingMode) Night {
	resolve := func(get sleepField) *float64 {
		return pick(mode, fieldOf(p.Bed, get), fieldOf(p.Tracker, get))
	}

	n := Night{Date: p.Date, Devices: []models.DeviceCategory{}}
	if p.Bed != nil {
		n.Devices = append(n.Devices, models.DeviceBed)
	}
	if p.Tracker != nil {
		n.Devices = append(n.Devices, models.DeviceTracker)
	}

	n.Duration = resolve(func(s *models.SleepData) *float64 { return positive(s.Duration) })
	n.Deep = resolve(func(s *models.SleepData) *float64 { return s.Deep })
	n.Light = resolve(func(s *models.SleepData) *float64 { return s.Light })
	n.REM = resolve(func(s *models.SleepData) *float64 { return s.REM })
	n.Awake = resolve(func(s *models.SleepData) *float64 { return s.Awake })
	n.Score = resolve(func(s *models.SleepData) *float64 { return s.Score })
	n.HRAverage = resolve(func(s *models.SleepData) *float64 { return s.HRAverage })
	n.HRMin = resolve(func(s *models.SleepData) *float64 { return s.HRMin })
	n.HRMax = resolve(func(s *models.SleepData) *float64 { return s.HRMax })
	n.TimeToSleep = resolve(func(s *models.SleepData) *float64 { return s.TimeToSleep })
	n.TimeToWake = resolve(func(s *models.SleepData) *float64 { return s.TimeToWake })
	n.Snoring = resolve(func(s *models.SleepData) *float64 { return s.Snoring })
	n.SnoringEpisodes = resolve(func(s *models.SleepData) *float64 { return s.SnoringEpisodes })
	n.WakeCount = resolve(func(s *models.SleepData) *float64 { return s.WakeCount })

	n.AsleepAt = pickClock(mode, fieldOf(p.Bed, asleepMinute), fieldOf(p.Tracker, asleepMinute))
	n.WakeAt = pickClock(mode, fieldOf(p.Bed, wakeMinute), fieldOf(p.Tracker, wakeMinute))
	return n
}

// ReconcileSleep pairs records by night and reconciles each pair.
func ReconcileSleep(records []models.SleepData, mode CountingMode) []Night {
	pairs := PairNights(records)
	out := make([]Night, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, ReconcileNight(p, mode))
	}
	return out
}

// DeviceDelta summarizes bed minus tracker differences over nights recorded
// by both devices.
type DeviceDelta struct {
	Nights    int      `json:"nights"`
	Duration  *float64 `json:"duration,omitempty"`
	Deep      *float64 `json:"deep,omitempty"`
	Light     *float64 `json:"light,omitempty"`
	REM       *float64 `json:"rem,omitempty"`
	Awake     *float64 `json:"awake,omitempty"`
	HRAverage *float64 `json:"hr_average,omitempty"`
}

// SleepStatsBundle summarizes a set of nights under one counting mode.
type SleepStatsBundle struct {
	Mode          CountingMode `json:"mode"`
	Nights        int          `json:"nights"`
	BedNights     int          `json:"bed_nights"`
	TrackerNights int          `json:"tracker_nights"`
	DualNights    int          `json:"dual_nights"`

	Duration      *float64 `json:"duration,omitempty"`
	DurationRange *MinMax  `json:"duration_range,omitempty"`
	Deep          *float64 `json:"deep,omitempty"`
	Light         *float64 `json:"light,omitempty"`
	REM           *float64 `json:"rem,omitempty"`
	Awake         *float64 `json:"awake,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	HRAverage     *float64 `json:"hr_average,omitempty"`
	HRMin         *float64 `json:"hr_min,omitempty"`
	HRMax         *float64 `json:"hr_max,omitempty"`
	TimeToSleep   *float64 `json:"time_to_sleep,omitempty"`
	TimeToWake    *float64 `json:"time_to_wake,omitempty"`
	Snoring       *float64 `json:"snoring,omitempty"`
	WakeCount     *float64 `json:"wake_count,omitempty"`

	AsleepTime        *ClockTime `json:"asleep_time,omitempty"`
	WakeTime          *ClockTime `json:"wake_time,omitempty"`
	AsleepConsistency *float64   `json:"asleep_consistency_stddev_hr,omitempty"`
	WakeConsistency   *float64   `json:"wake_consistency_stddev_hr,omitempty"`

	DeviceDelta *DeviceDelta `json:"device_delta,omitempty"`
}

// CalculateSleepStats reconciles records under mode and averages the nights.
func CalculateSleepStats(records []models.SleepData, mode CountingMode) SleepStatsBundle {
	pairs := PairNights(records)
	nights := make([]Night, 0, len(pairs))
	b := SleepStatsBundle{Mode: mode, Nights: len(pairs)}
	for _, p := range pairs {
		nights = append(nights, ReconcileNight(p, mode))
		if p.Bed != nil {
			b.BedNights++
		}
		if p.Tracker != nil {
			b.TrackerNights++
		}
		if p.Bed != nil && p.Tracker != nil {
			b.DualNights++
		}
	}

	avg := func(get func(Night) *float64) *float64 {
		return AverageMetric(collect(nights, get))
	}
	b.Duration = avg(func(n Night) *float64 { return n.Duration })
	b.DurationRange = GetMinMax(collect(nights, func(n Night) *float64 { return n.Duration }))
	b.Deep = avg(func(n Night) *float64 { return n.Deep })
	b.Light = avg(func(n Night) *float64 { return n.Light })
	b.REM = avg(func(n Night) *float64 { return n.REM })
	b.Awake = avg(func(n Night) *float64 { return n.Awake })
	b.Score = avg(func(n Night) *float64 { return n.Score })
	b.HRAverage = avg(func(n Night) *float64 { return n.HRAverage })
	b.TimeToSleep = avg(func(n Night) *float64 { return n.TimeToSleep })
	b.TimeToWake = avg(func(n Night) *float64 { return n.TimeToWake })
	b.Snoring = avg(func(n Night) *float64 { return n.Snoring })
	b.WakeCount = avg(func(n Night) *float64 { return n.WakeCount })
	if r := GetMinMax(collect(nights, func(n Night) *float64 { return n.HRMin })); r != nil {
		b.HRMin = Float(r.Min)
	}
	if r := GetMinMax(collect(nights, func(n Night) *float64 { return n.HRMax })); r != nil {
		b.HRMax = Float(r.Max)
	}

	asleep := collect(nights, func(n Night) *float64 { return n.AsleepAt })
	wake := collect(nights, func(n Night) *float64 { return n.WakeAt })
	b.AsleepTime = AverageClock(asleep)
	b.WakeTime = AverageClock(wake)
	b.AsleepConsistency = clockSpread(asleep)
	b.WakeConsistency = clockSpread(wake)

	b.DeviceDelta = deviceDelta(pairs)
	return b
}

func deviceDelta(pairs []NightPair) *DeviceDelta {
	var dual []NightPair
	for _, p := range pairs {
		if p.Bed != nil && p.Tracker != nil {
			dual = append(dual, p)
		}
	}
	if len(dual) == 0 {
		return nil
	}

	diff := func(get sleepField) *float64 {
		return AverageMetric(collect(dual, func(p NightPair) *float64 {
			bed, tracker := get(p.Bed), get(p.Tracker)
			if !isFinite(bed) || !isFinite(tracker) {
				return nil
			}
			d := *bed - *tracker
			return &d
		}))
	}
	return &DeviceDelta{
		Nights:    len(dual),
		Duration:  diff(func(s *models.SleepData) *float64 { return positive(s.Duration) }),
		Deep:      diff(func(s *models.SleepData) *float64 { return s.Deep }),
		Light:     diff(func(s *models.SleepData) *float64 { return s.Light }),
		REM:       diff(func(s *models.SleepData) *float64 { return s.REM }),
		Awake:     diff(func(s *models.SleepData) *float64 { return s.Awake }),
		HRAverage: diff(func(s *models.SleepData) *float64 { return s.HRAverage }),
	}
}
