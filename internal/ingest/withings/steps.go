package withings

import (
	"regexp"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/claude/healthmerge/internal/ingest"
	"github.com/claude/healthmerge/internal/models"
)

var (
	dateColumns  = []string{"date", "day", "start", "from"}
	valueColumns = []string{"value", "amount", "total"}
)

// parseSteps builds one StepData per day from the steps aggregate, then
// attaches distance, elevation and calories from the side aggregates. Side
// rows for days without steps are dropped.
func parseSteps(a *archive) partial {
	var out partial
	t := a.open(stepsEntry, "steps", &out.diag)
	if t == nil {
		return out
	}

	days := orderedmap.New[string, *models.StepData]()
	skipped := 0
	t.each(func(r row) {
		date := normalizeDate(r.text(dateColumns...))
		steps := r.number(append([]string{"steps"}, valueColumns...)...)
		if date == "" || steps <= 0 {
			skipped++
			return
		}
		if d, ok := days.Get(date); ok {
			d.Steps = steps
			return
		}
		days.Set(date, &models.StepData{Date: date, Steps: steps})
	})
	out.diag.Skipped("steps", skipped)

	enrich(a, days, distanceEntry, "distance", &out.diag, func(d *models.StepData, meters float64) {
		km := meters / 1000
		d.Distance = &km
	})
	enrich(a, days, elevationEntry, "elevation", &out.diag, func(d *models.StepData, v float64) {
		d.Elevation = &v
	})
	enrich(a, days, caloriesEntry, "calories", &out.diag, func(d *models.StepData, v float64) {
		d.Calories = &v
	})

	out.metrics.Steps = make([]models.StepData, 0, days.Len())
	for pair := days.Oldest(); pair != nil; pair = pair.Next() {
		out.metrics.Steps = append(out.metrics.Steps, *pair.Value)
	}
	return out
}

// enrich applies a side aggregate to the days already keyed from the steps file.
func enrich(a *archive, days *orderedmap.OrderedMap[string, *models.StepData], pattern *regexp.Regexp, metric string, diag *ingest.Diagnostics, apply func(d *models.StepData, v float64)) {
	t := a.open(pattern, metric, diag)
	if t == nil {
		return
	}
	t.each(func(r row) {
		d, ok := days.Get(normalizeDate(r.text(dateColumns...)))
		if !ok {
			return
		}
		apply(d, r.number(append([]string{metric}, valueColumns...)...))
	})
}
