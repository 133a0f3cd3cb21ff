package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/healthmerge/internal/models"
	"github.com/claude/healthmerge/internal/store"
)

// Repository reads and writes the health data store through a KV. It does
// not serialize concurrent writers; callers own that.
type Repository struct {
	kv  KV
	log *slog.Logger
}

func NewRepository(kv KV, log *slog.Logger) *Repository {
	return &Repository{kv: kv, log: log}
}

// Load returns the persisted store, or an empty one if nothing was saved.
// Legacy single-source payloads are migrated on read.
func (r *Repository) Load(ctx context.Context) (models.HealthDataStore, error) {
	raw, found, err := r.kv.Get(ctx, StoreKey)
	if err != nil {
		return models.HealthDataStore{}, fmt.Errorf("loading store: %w", err)
	}
	if !found {
		return store.Empty(), nil
	}

	s, migrated, err := store.Decode(raw)
	if err != nil {
		return models.HealthDataStore{}, err
	}
	if migrated {
		r.log.Info("migrated legacy store payload", "source", store.LegacySourceID)
	}
	return s, nil
}

// LoadData loads the store and flattens it across sources.
func (r *Repository) LoadData(ctx context.Context) (models.HealthData, error) {
	s, err := r.Load(ctx)
	if err != nil {
		return models.HealthData{}, err
	}
	return store.AggregateHealthData(s), nil
}

// Save replaces the persisted store.
func (r *Repository) Save(ctx context.Context, s models.HealthDataStore) error {
	b, err := store.Encode(s)
	if err != nil {
		return err
	}
	if err := r.kv.Put(ctx, StoreKey, b); err != nil {
		return fmt.Errorf("saving store: %w", err)
	}
	return nil
}

// Clear deletes the persisted store.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.kv.Delete(ctx, StoreKey); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	return nil
}

// Sources lists the persisted sources without their records.
func (r *Repository) Sources(ctx context.Context) ([]store.SourceSummary, error) {
	s, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return store.Summaries(s), nil
}
