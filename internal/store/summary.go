package store

import (
	"time"

	"github.com/claude/healthmerge/internal/models"
)

// SourceSummary describes one source without its records.
type SourceSummary struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	ImportedAt time.Time `json:"imported_at"`
	Records    int       `json:"records"`
	FirstDate  string    `json:"first_date,omitempty"`
	LastDate   string    `json:"last_date,omitempty"`
}

// Summaries lists every source in aggregation order.
func Summaries(s models.HealthDataStore) []SourceSummary {
	out := make([]SourceSummary, 0, len(s.Sources))
	for _, id := range SourceIDs(s) {
		src := s.Sources[id]
		first, last := dateSpan(src.Data)
		out = append(out, SourceSummary{
			ID:         id,
			Label:      src.Label,
			ImportedAt: src.ImportedAt,
			Records:    src.Data.Len(),
			FirstDate:  first,
			LastDate:   last,
		})
	}
	return out
}

func dateSpan(m models.HealthMetrics) (first, last string) {
	see := func(d string) {
		if d == "" {
			return
		}
		if first == "" || d < first {
			first = d
		}
		if d > last {
			last = d
		}
	}
	for _, r := range m.Steps {
		see(r.Date)
	}
	for _, r := range m.Sleep {
		see(r.Date)
	}
	for _, r := range m.Weight {
		see(r.Date)
	}
	for _, r := range m.BloodPressure {
		see(r.Date)
	}
	for _, r := range m.Height {
		see(r.Date)
	}
	for _, r := range m.SpO2 {
		see(r.Date)
	}
	for _, r := range m.Activities {
		see(r.Date)
	}
	return first, last
}
