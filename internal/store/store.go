// Package store holds the multi-source health data store. Stores are values:
// every operation returns a new store and leaves its input untouched.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/claude/healthmerge/internal/models"
)

// LegacySourceID names the single source that pre-multi-source payloads are
// migrated into.
const LegacySourceID = "withings"

var (
	ErrUnknownSource   = errors.New("unknown data source")
	ErrInvalidSourceID = errors.New("invalid data source id")
)

var sourceIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// ValidateSourceID checks that id is a short lowercase slug.
func ValidateSourceID(id string) error {
	if !sourceIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSourceID, id)
	}
	return nil
}

// now is replaced in tests.
var now = time.Now

var titleCaser = cases.Title(language.English)

// Empty returns a store with no sources and no events.
func Empty() models.HealthDataStore {
	return models.HealthDataStore{
		Sources: map[string]models.HealthDataSource{},
		Events:  []models.PatternEvent{},
	}
}

// Label derives a human label from a source id: "withings-scale" becomes
// "Withings Scale".
func Label(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	if len(words) == 0 {
		return id
	}
	return titleCaser.String(strings.Join(words, " "))
}

// CreateDataSource wraps normalized metrics into a source stamped with the
// current time.
func CreateDataSource(id string, metrics models.HealthMetrics) models.HealthDataSource {
	return models.HealthDataSource{
		ID:         id,
		Label:      Label(id),
		Data:       metrics.Normalized(),
		ImportedAt: now().UTC(),
	}
}

// PutSource returns a store in which src replaces any source with the same id.
func PutSource(s models.HealthDataStore, src models.HealthDataSource) models.HealthDataStore {
	next := clone(s)
	src.Data = src.Data.Normalized()
	next.Sources[src.ID] = src
	return next
}

// RemoveSource returns a store without the given source.
func RemoveSource(s models.HealthDataStore, id string) (models.HealthDataStore, error) {
	if _, ok := s.Sources[id]; !ok {
		return s, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	next := clone(s)
	delete(next.Sources, id)
	return next, nil
}

// UpdateEvents returns a store with its events replaced. Sources are shared
// with the input.
func UpdateEvents(s models.HealthDataStore, events []models.PatternEvent) models.HealthDataStore {
	next := clone(s)
	next.Events = append([]models.PatternEvent{}, events...)
	return next
}

// SourceIDs returns the store's source ids in aggregation order.
func SourceIDs(s models.HealthDataStore) []string {
	ids := make([]string, 0, len(s.Sources))
	for id := range s.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AggregateHealthData concatenates every source's metrics in source id order.
// Overlapping records from different sources are all kept.
func AggregateHealthData(s models.HealthDataStore) models.HealthData {
	out := models.HealthData{
		HealthMetrics: models.HealthMetrics{}.Normalized(),
		Events:        append([]models.PatternEvent{}, s.Events...),
		Sources:       SourceIDs(s),
	}
	for _, id := range out.Sources {
		m := s.Sources[id].Data
		out.Steps = append(out.Steps, m.Steps...)
		out.Sleep = append(out.Sleep, m.Sleep...)
		out.Weight = append(out.Weight, m.Weight...)
		out.BloodPressure = append(out.BloodPressure, m.BloodPressure...)
		out.Height = append(out.Height, m.Height...)
		out.SpO2 = append(out.SpO2, m.SpO2...)
		out.Activities = append(out.Activities, m.Activities...)
	}
	return out
}

// clone copies the source map and event slice headers. Source values are
// never mutated in place so a shallow copy is enough.
func clone(s models.HealthDataStore) models.HealthDataStore {
	next := models.HealthDataStore{
		Sources: make(map[string]models.HealthDataSource, len(s.Sources)+1),
		Events:  s.Events,
	}
	for id, src := range s.Sources {
		next.Sources[id] = src
	}
	if next.Events == nil {
		next.Events = []models.PatternEvent{}
	}
	return next
}

// legacyPayload is the single-source layout persisted before sources existed.
type legacyPayload struct {
	models.HealthMetrics
	Events      []models.PatternEvent `json:"events"`
	LastUpdated *time.Time            `json:"lastUpdated,omitempty"`
}

// Decode reads a persisted payload. Payloads without a "sources" field are
// migrated into a single LegacySourceID source; migrated reports when that
// happened. An empty payload decodes to an empty store.
func Decode(payload []byte) (s models.HealthDataStore, migrated bool, err error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return Empty(), false, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return models.HealthDataStore{}, false, fmt.Errorf("decoding store: %w", err)
	}

	if _, ok := probe["sources"]; ok {
		if err := json.Unmarshal(payload, &s); err != nil {
			return models.HealthDataStore{}, false, fmt.Errorf("decoding store: %w", err)
		}
		if s.Sources == nil {
			s.Sources = map[string]models.HealthDataSource{}
		}
		for id, src := range s.Sources {
			src.ID = id
			src.Data = src.Data.Normalized()
			if src.Label == "" {
				src.Label = Label(id)
			}
			s.Sources[id] = src
		}
		if s.Events == nil {
			s.Events = []models.PatternEvent{}
		}
		return s, false, nil
	}

	var legacy legacyPayload
	if err := json.Unmarshal(payload, &legacy); err != nil {
		return models.HealthDataStore{}, false, fmt.Errorf("decoding legacy store: %w", err)
	}
	src := CreateDataSource(LegacySourceID, legacy.HealthMetrics)
	if legacy.LastUpdated != nil {
		src.ImportedAt = legacy.LastUpdated.UTC()
	}
	s = Empty()
	s.Sources[LegacySourceID] = src
	if legacy.Events != nil {
		s.Events = legacy.Events
	}
	return s, true, nil
}

// Encode serializes a store for persistence.
func Encode(s models.HealthDataStore) ([]byte, error) {
	if s.Sources == nil {
		s.Sources = map[string]models.HealthDataSource{}
	}
	if s.Events == nil {
		s.Events = []models.PatternEvent{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding store: %w", err)
	}
	return b, nil
}
