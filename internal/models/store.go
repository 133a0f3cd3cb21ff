package models

import "time"

// HealthMetrics is the output of one archive parse.
type HealthMetrics struct {
	Steps         []StepData          `json:"steps"`
	Sleep         []SleepData         `json:"sleep"`
	Weight        []WeightData        `json:"weight"`
	BloodPressure []BloodPressureData `json:"bloodPressure"`
	Height        []HeightData        `json:"height"`
	SpO2          []SpO2Data          `json:"spo2"`
	Activities    []ActivityData      `json:"activities"`
}

// Normalized returns a copy of m with every nil list replaced by an empty one.
func (m HealthMetrics) Normalized() HealthMetrics {
	return HealthMetrics{
		Steps:         orEmpty(m.Steps),
		Sleep:         orEmpty(m.Sleep),
		Weight:        orEmpty(m.Weight),
		BloodPressure: orEmpty(m.BloodPressure),
		Height:        orEmpty(m.Height),
		SpO2:          orEmpty(m.SpO2),
		Activities:    orEmpty(m.Activities),
	}
}

// Len returns the total number of records across all metric lists.
func (m HealthMetrics) Len() int {
	return len(m.Steps) + len(m.Sleep) + len(m.Weight) + len(m.BloodPressure) +
		len(m.Height) + len(m.SpO2) + len(m.Activities)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// HealthDataSource is one import's metric set, owned by the store.
type HealthDataSource struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Data       HealthMetrics `json:"data"`
	ImportedAt time.Time     `json:"importedAt"`
}

// HealthDataStore is the persisted root: sources keyed by id plus the shared
// event list. Treat values as immutable; operations return new stores.
type HealthDataStore struct {
	Sources map[string]HealthDataSource `json:"sources"`
	Events  []PatternEvent              `json:"events"`
}

// HealthData is the read-only flattening of a store across all sources.
type HealthData struct {
	HealthMetrics
	Events  []PatternEvent `json:"events"`
	Sources []string       `json:"sources"`
}
