package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/claude/healthmerge/internal/models"
)

// WeekdaySet is a set of days treated as weekend.
type WeekdaySet map[time.Weekday]bool

// DefaultWeekend is Saturday and Sunday.
func DefaultWeekend() WeekdaySet {
	return WeekdaySet{time.Saturday: true, time.Sunday: true}
}

// NewWeekdaySet builds a set from day indices, 0 = Sunday through 6 = Saturday.
func NewWeekdaySet(days ...int) (WeekdaySet, error) {
	set := WeekdaySet{}
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("weekday index %d out of range 0-6", d)
		}
		set[time.Weekday(d)] = true
	}
	return set, nil
}

// ParseWeekdaySet reads a comma separated list of day indices such as "5,6".
func ParseWeekdaySet(s string) (WeekdaySet, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parsing weekday %q: %w", part, err)
		}
		days = append(days, d)
	}
	return NewWeekdaySet(days...)
}

// Days returns the set's indices in ascending order.
func (w WeekdaySet) Days() []int {
	out := make([]int, 0, len(w))
	for d, ok := range w {
		if ok {
			out = append(out, int(d))
		}
	}
	sort.Ints(out)
	return out
}

// classify reports whether date falls in the set. ok is false for dates that
// cannot be parsed.
func (w WeekdaySet) classify(date string) (weekend, ok bool) {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return false, false
	}
	return w[d.Weekday()], true
}

// RangeEventStat summarizes one bucket of days: a day type or an event range.
type RangeEventStat struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	Days     int      `json:"days"`
	StepDays int      `json:"step_days"`
	Steps    *float64 `json:"steps,omitempty"`

	Nights int      `json:"nights"`
	Sleep  *float64 `json:"sleep,omitempty"`
	Deep   *float64 `json:"deep,omitempty"`
	Light  *float64 `json:"light,omitempty"`
	REM    *float64 `json:"rem,omitempty"`
	Awake  *float64 `json:"awake,omitempty"`

	AsleepTime *ClockTime `json:"asleep_time,omitempty"`
	WakeTime   *ClockTime `json:"wake_time,omitempty"`
	HRAverage  *float64   `json:"hr_average,omitempty"`

	// WeightDelta is the last minus the first weigh-in inside the range.
	WeightDelta *float64 `json:"weight_delta,omitempty"`
}

func buildRangeStat(id, label string, steps []models.StepData, nights []Night, weights []models.WeightData) RangeEventStat {
	days := map[string]bool{}
	for _, s := range steps {
		days[s.Date] = true
	}
	for _, n := range nights {
		days[n.Date] = true
	}

	st := RangeEventStat{
		ID:       id,
		Label:    label,
		Days:     len(days),
		StepDays: len(steps),
		Nights:   len(nights),
		Steps:    AverageMetric(collect(steps, func(s models.StepData) *float64 { return positive(s.Steps) })),
	}

	avg := func(get func(Night) *float64) *float64 {
		return AverageMetric(collect(nights, get))
	}
	st.Sleep = avg(func(n Night) *float64 { return n.Duration })
	st.Deep = avg(func(n Night) *float64 { return n.Deep })
	st.Light = avg(func(n Night) *float64 { return n.Light })
	st.REM = avg(func(n Night) *float64 { return n.REM })
	st.Awake = avg(func(n Night) *float64 { return n.Awake })
	st.HRAverage = avg(func(n Night) *float64 { return n.HRAverage })
	st.AsleepTime = AverageClock(collect(nights, func(n Night) *float64 { return n.AsleepAt }))
	st.WakeTime = AverageClock(collect(nights, func(n Night) *float64 { return n.WakeAt }))
	st.WeightDelta = weightDelta(weights)
	return st
}

// weightDelta needs at least two weigh-ins.
func weightDelta(weights []models.WeightData) *float64 {
	var valid []models.WeightData
	for _, w := range weights {
		if isFinite(&w.Weight) && w.Weight > 0 {
			valid = append(valid, w)
		}
	}
	if len(valid) < 2 {
		return nil
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Date < valid[j].Date })
	d := valid[len(valid)-1].Weight - valid[0].Weight
	return &d
}

// Day-type row ids.
const (
	WeekendID = "weekend"
	WeekdayID = "weekday"
)

// CalculateDayTypeStats splits steps and reconciled nights into weekend and
// weekday buckets. The result always has two rows: weekend, then weekday.
// Records with unparseable dates are ignored.
func CalculateDayTypeStats(steps []models.StepData, sleep []models.SleepData, weekend WeekdaySet, mode CountingMode) []RangeEventStat {
	var weStep, wdStep []models.StepData
	for _, s := range steps {
		isWeekend, ok := weekend.classify(s.Date)
		switch {
		case !ok:
		case isWeekend:
			weStep = append(weStep, s)
		default:
			wdStep = append(wdStep, s)
		}
	}

	var weNight, wdNight []Night
	for _, n := range ReconcileSleep(sleep, mode) {
		isWeekend, ok := weekend.classify(n.Date)
		switch {
		case !ok:
		case isWeekend:
			weNight = append(weNight, n)
		default:
			wdNight = append(wdNight, n)
		}
	}

	return []RangeEventStat{
		buildRangeStat(WeekendID, "Weekend", weStep, weNight, nil),
		buildRangeStat(WeekdayID, "Weekday", wdStep, wdNight, nil),
	}
}

// CalculateEventStats builds one row per event covering its inclusive date
// range, in event order.
func CalculateEventStats(data models.HealthData, mode CountingMode) []RangeEventStat {
	nights := ReconcileSleep(data.Sleep, mode)
	out := make([]RangeEventStat, 0, len(data.Events))
	for _, ev := range data.Events {
		start, end := ev.StartDate, ev.LastDate()
		label := ev.Title
		if label == "" {
			label = ev.ID
		}
		st := buildRangeStat(ev.ID, label,
			filterByDate(data.Steps, func(s models.StepData) string { return s.Date }, start, end),
			filterByDate(nights, func(n Night) string { return n.Date }, start, end),
			filterByDate(data.Weight, func(w models.WeightData) string { return w.Date }, start, end),
		)
		st.StartDate, st.EndDate = start, end
		out = append(out, st)
	}
	return out
}
