package stats

import (
	"fmt"
	"time"

	"github.com/claude/healthmerge/internal/models"
)

// InRange reports whether date lies within [start, end]. An empty bound is
// open. Dates compare as YYYY-MM-DD strings.
func InRange(date, start, end string) bool {
	if start != "" && date < start {
		return false
	}
	if end != "" && date > end {
		return false
	}
	return true
}

// ValidateRange checks that both bounds are empty or YYYY-MM-DD and ordered.
func ValidateRange(start, end string) error {
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
		}
	}
	if start != "" && end != "" && start > end {
		return fmt.Errorf("start %s is after end %s", start, end)
	}
	return nil
}

func filterByDate[T any](items []T, date func(T) string, start, end string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if InRange(date(it), start, end) {
			out = append(out, it)
		}
	}
	return out
}

// FilterSteps keeps steps within [start, end].
func FilterSteps(steps []models.StepData, start, end string) []models.StepData {
	return filterByDate(steps, func(s models.StepData) string { return s.Date }, start, end)
}

// FilterSleep keeps sleep sessions whose night label is within [start, end].
func FilterSleep(sleep []models.SleepData, start, end string) []models.SleepData {
	return filterByDate(sleep, func(s models.SleepData) string { return s.Date }, start, end)
}

// FilterWeight keeps weigh-ins within [start, end].
func FilterWeight(weight []models.WeightData, start, end string) []models.WeightData {
	return filterByDate(weight, func(w models.WeightData) string { return w.Date }, start, end)
}

// FilterData restricts every metric list of d to [start, end]. Events and
// sources are kept as they are.
func FilterData(d models.HealthData, start, end string) models.HealthData {
	if start == "" && end == "" {
		return d
	}
	d.Steps = FilterSteps(d.Steps, start, end)
	d.Sleep = FilterSleep(d.Sleep, start, end)
	d.Weight = FilterWeight(d.Weight, start, end)
	d.BloodPressure = filterByDate(d.BloodPressure, func(b models.BloodPressureData) string { return b.Date }, start, end)
	d.Height = filterByDate(d.Height, func(h models.HeightData) string { return h.Date }, start, end)
	d.SpO2 = filterByDate(d.SpO2, func(s models.SpO2Data) string { return s.Date }, start, end)
	d.Activities = filterByDate(d.Activities, func(a models.ActivityData) string { return a.Date }, start, end)
	return d
}
