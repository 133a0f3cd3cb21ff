package withings

import (
	"encoding/json"

	"github.com/claude/healthmerge/internal/models"
)

// activityData is the JSON blob Withings stores in the "Data" column.
type activityData map[string]any

func (d activityData) number(keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := d[k].(float64); ok {
			return &v
		}
	}
	return nil
}

// parseActivities keeps only rows with steps or active time. Values missing
// from dedicated columns are read from the Data JSON blob.
func parseActivities(a *archive) partial {
	var out partial
	t := a.open(activitiesEntry, "activities", &out.diag)
	if t == nil {
		return out
	}

	out.metrics.Activities = []models.ActivityData{}
	skipped := 0
	t.each(func(r row) {
		var data activityData
		if raw := r.text("data"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				data = nil
			}
		}

		act := models.ActivityData{
			Date:       normalizeDate(r.text("date", "from", "start")),
			Type:       r.text("activity type", "type", "category", "activity"),
			Steps:      r.number("steps"),
			ActiveTime: r.number("activetime", "active time (s)", "active time", "duration (s)", "duration"),
			Distance:   r.optional("distance (km)", "distance"),
			Calories:   r.optional("calories (kcal)", "calories"),
			Elevation:  r.optional("elevation (m)", "elevation"),
			HRAverage:  r.optional("average heart rate", "hr_average"),
		}
		if start, ok := parseTimestamp(r.text("from", "start")); ok {
			act.Start = &start
		}
		if end, ok := parseTimestamp(r.text("to", "end")); ok {
			act.End = &end
		}

		if act.Steps <= 0 {
			if v := data.number("steps"); v != nil {
				act.Steps = *v
			}
		}
		if act.ActiveTime <= 0 {
			if v := data.number("effduration", "duration"); v != nil {
				act.ActiveTime = *v
			} else if act.Start != nil && act.End != nil && act.End.After(*act.Start) {
				act.ActiveTime = act.End.Sub(*act.Start).Seconds()
			}
		}
		if act.Distance == nil {
			if v := data.number("distance", "manual_distance"); v != nil {
				km := *v / 1000
				act.Distance = &km
			}
		}
		if act.Calories == nil {
			act.Calories = data.number("calories", "manual_calories")
		}
		if act.Elevation == nil {
			act.Elevation = data.number("elevation")
		}
		if act.HRAverage == nil {
			act.HRAverage = data.number("hr_average")
		}

		if act.Date == "" || (act.Steps <= 0 && act.ActiveTime <= 0) {
			skipped++
			return
		}
		out.metrics.Activities = append(out.metrics.Activities, act)
	})
	out.diag.Skipped("activities", skipped)
	return out
}
