package stats

import (
	"errors"
	"fmt"
	"time"

	"github.com/claude/healthmerge/internal/models"
)

// maxSeriesDays bounds a rolling series to roughly thirty years of days.
const maxSeriesDays = 11000

// DailyValue is one observation on a calendar day.
type DailyValue struct {
	Date  string
	Value *float64
}

// RollingPoint is one day of a rolling series. Value is that day's mean, nil
// on days without data. Average is the mean of the daily values inside the
// trailing window and Samples the number of days that contributed to it.
type RollingPoint struct {
	Date    string   `json:"date"`
	Value   *float64 `json:"value"`
	Average *float64 `json:"average"`
	Samples int      `json:"samples"`
}

// RollingSeries produces one point per calendar day from start to end, both
// inclusive, with a trailing window of the given number of days. Empty bounds
// default to the first and last day with data.
func RollingSeries(values []DailyValue, window int, start, end string) ([]RollingPoint, error) {
	if window < 1 {
		window = 1
	}
	if window > maxSeriesDays {
		return nil, fmt.Errorf("window of %d days exceeds limit of %d", window, maxSeriesDays)
	}
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}

	type acc struct {
		sum float64
		n   int
	}
	byDate := map[string]*acc{}
	first, last := "", ""
	for _, v := range values {
		if !isFinite(v.Value) {
			continue
		}
		if _, err := time.Parse(models.DateLayout, v.Date); err != nil {
			continue
		}
		a, ok := byDate[v.Date]
		if !ok {
			a = &acc{}
			byDate[v.Date] = a
		}
		a.sum += *v.Value
		a.n++
		if first == "" || v.Date < first {
			first = v.Date
		}
		if v.Date > last {
			last = v.Date
		}
	}
	if start == "" {
		start = first
	}
	if end == "" {
		end = last
	}
	if start == "" || end == "" || start > end {
		return []RollingPoint{}, nil
	}

	from, _ := time.Parse(models.DateLayout, start)
	to, _ := time.Parse(models.DateLayout, end)
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxSeriesDays {
		return nil, fmt.Errorf("series spans %d days, limit is %d", days, maxSeriesDays)
	}

	daily := make([]*float64, days)
	for i := range daily {
		date := from.AddDate(0, 0, i).Format(models.DateLayout)
		if a, ok := byDate[date]; ok {
			daily[i] = Float(a.sum / float64(a.n))
		}
	}

	// Days before start still feed the first windows.
	lead := make([]*float64, window-1)
	for i := range lead {
		date := from.AddDate(0, 0, i-(window-1)).Format(models.DateLayout)
		if a, ok := byDate[date]; ok {
			lead[i] = Float(a.sum / float64(a.n))
		}
	}
	all := append(lead, daily...)

	out := make([]RollingPoint, 0, days)
	var sum float64
	n := 0
	for i, v := range all {
		if v != nil {
			sum += *v
			n++
		}
		if j := i - window; j >= 0 && all[j] != nil {
			sum -= *all[j]
			n--
		}
		if i < len(lead) {
			continue
		}
		p := RollingPoint{
			Date:    from.AddDate(0, 0, i-len(lead)).Format(models.DateLayout),
			Value:   v,
			Samples: n,
		}
		if n > 0 {
			p.Average = Float(sum / float64(n))
		}
		out = append(out, p)
	}
	return out, nil
}

// StepValues converts step records into daily values.
func StepValues(steps []models.StepData) []DailyValue {
	out := make([]DailyValue, 0, len(steps))
	for _, s := range steps {
		out = append(out, DailyValue{Date: s.Date, Value: positive(s.Steps)})
	}
	return out
}

// SleepValues converts reconciled nights into daily sleep durations.
func SleepValues(nights []Night) []DailyValue {
	out := make([]DailyValue, 0, len(nights))
	for _, n := range nights {
		out = append(out, DailyValue{Date: n.Date, Value: n.Duration})
	}
	return out
}

// WeightValues converts weigh-ins into daily values.
func WeightValues(weights []models.WeightData) []DailyValue {
	out := make([]DailyValue, 0, len(weights))
	for _, w := range weights {
		out = append(out, DailyValue{Date: w.Date, Value: positive(w.Weight)})
	}
	return out
}

// Rolling series metrics.
const (
	MetricSteps  = "steps"
	MetricSleep  = "sleep"
	MetricWeight = "weight"
)

var ErrUnknownMetric = errors.New("unknown metric")

// MetricValues selects the daily values of one metric from data. Sleep is
// reconciled per night with mode first.
func MetricValues(data models.HealthData, metric string, mode CountingMode) ([]DailyValue, error) {
	switch metric {
	case MetricSteps, "":
		return StepValues(data.Steps), nil
	case MetricSleep:
		return SleepValues(ReconcileSleep(data.Sleep, mode)), nil
	case MetricWeight:
		return WeightValues(data.Weight), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
}
