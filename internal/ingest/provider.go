package ingest

import (
	"sort"

	"github.com/claude/healthmerge/internal/models"
)

// Diagnostics records what a parse silently skipped. It never affects the
// parsed metrics.
type Diagnostics struct {
	MissingEntries    []string       `json:"missing_entries,omitempty"`
	UnreadableEntries []string       `json:"unreadable_entries,omitempty"`
	SkippedRows       map[string]int `json:"skipped_rows,omitempty"`
}

// Missing records that no archive entry matched the given metric.
func (d *Diagnostics) Missing(metric string) {
	d.MissingEntries = append(d.MissingEntries, metric)
	sort.Strings(d.MissingEntries)
}

// Unreadable records an archive entry that matched but could not be decoded.
func (d *Diagnostics) Unreadable(name string) {
	d.UnreadableEntries = append(d.UnreadableEntries, name)
	sort.Strings(d.UnreadableEntries)
}

// Merge folds other into d.
func (d *Diagnostics) Merge(other Diagnostics) {
	for _, m := range other.MissingEntries {
		d.Missing(m)
	}
	for _, u := range other.UnreadableEntries {
		d.Unreadable(u)
	}
	for metric, n := range other.SkippedRows {
		d.Skipped(metric, n)
	}
}

// Skipped adds n dropped rows for the given metric.
func (d *Diagnostics) Skipped(metric string, n int) {
	if n <= 0 {
		return
	}
	if d.SkippedRows == nil {
		d.SkippedRows = make(map[string]int)
	}
	d.SkippedRows[metric] += n
}

// Empty reports whether nothing was skipped.
func (d Diagnostics) Empty() bool {
	return len(d.MissingEntries) == 0 && len(d.UnreadableEntries) == 0 && len(d.SkippedRows) == 0
}

// Result holds the outcome of an import.
type Result struct {
	SourceID      string `json:"source_id"`
	Replaced      bool   `json:"replaced"`
	DryRun        bool   `json:"dry_run,omitempty"`
	Steps         int    `json:"steps"`
	Sleep         int    `json:"sleep"`
	Weight        int    `json:"weight"`
	BloodPressure int    `json:"blood_pressure"`
	Height        int    `json:"height"`
	SpO2          int    `json:"spo2"`
	Activities    int    `json:"activities"`

	Diagnostics Diagnostics `json:"diagnostics"`

	Message string `json:"message,omitempty"`
}

// NewResult counts the records in m.
func NewResult(sourceID string, m models.HealthMetrics, diag Diagnostics) *Result {
	return &Result{
		SourceID:      sourceID,
		Steps:         len(m.Steps),
		Sleep:         len(m.Sleep),
		Weight:        len(m.Weight),
		BloodPressure: len(m.BloodPressure),
		Height:        len(m.Height),
		SpO2:          len(m.SpO2),
		Activities:    len(m.Activities),
		Diagnostics:   diag,
	}
}

// Total returns the number of records across all metrics.
func (r *Result) Total() int {
	return r.Steps + r.Sleep + r.Weight + r.BloodPressure + r.Height + r.SpO2 + r.Activities
}
