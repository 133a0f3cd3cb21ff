// Package importer turns export archives into persisted data sources.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/healthmerge/internal/ingest"
	"github.com/claude/healthmerge/internal/ingest/withings"
	"github.com/claude/healthmerge/internal/models"
	"github.com/claude/healthmerge/internal/storage"
	"github.com/claude/healthmerge/internal/store"
)

// DefaultSourceID is used when an import names no source.
const DefaultSourceID = store.LegacySourceID

// Importer parses archives and writes them into the repository. All writes
// go through one mutex so concurrent imports never lose each other's sources.
type Importer struct {
	repo   *storage.Repository
	log    *slog.Logger
	dryRun bool
	mu     sync.Mutex
}

// New creates a new Importer. In dry-run mode archives are parsed and
// counted but nothing is saved.
func New(repo *storage.Repository, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{repo: repo, log: log, dryRun: dryRun}
}

// Import reads the archive at path into the source sourceID.
func (imp *Importer) Import(ctx context.Context, path, sourceID string) (*ingest.Result, error) {
	start := time.Now()
	sourceID, err := resolveSourceID(sourceID)
	if err != nil {
		return nil, err
	}

	parsed, err := withings.ParseFile(ctx, path, imp.log)
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.record(ctx, sourceID, start, nil, err)
		return nil, err
	}
	return imp.commit(ctx, sourceID, start, parsed)
}

// ImportReader reads an archive held in memory or an open file.
func (imp *Importer) ImportReader(ctx context.Context, r io.ReaderAt, size int64, sourceID string) (*ingest.Result, error) {
	start := time.Now()
	sourceID, err := resolveSourceID(sourceID)
	if err != nil {
		return nil, err
	}

	parsed, err := withings.Parse(ctx, r, size, imp.log)
	if err != nil {
		imp.log.Warn("parse failed", "source", sourceID, "error", err)
		imp.record(ctx, sourceID, start, nil, err)
		return nil, err
	}
	return imp.commit(ctx, sourceID, start, parsed)
}

func (imp *Importer) commit(ctx context.Context, sourceID string, start time.Time, parsed *withings.Result) (*ingest.Result, error) {
	src := store.CreateDataSource(sourceID, parsed.Metrics)
	res := ingest.NewResult(sourceID, src.Data, parsed.Diagnostics)
	res.DryRun = imp.dryRun

	imp.mu.Lock()
	defer imp.mu.Unlock()

	current, err := imp.repo.Load(ctx)
	if err != nil {
		imp.record(ctx, sourceID, start, nil, err)
		return nil, fmt.Errorf("importing %s: %w", sourceID, err)
	}
	_, res.Replaced = current.Sources[sourceID]

	if imp.dryRun {
		res.Message = fmt.Sprintf("dry run: would import %d records into %s", res.Total(), sourceID)
		imp.log.Info("dry run import", "source", sourceID, "records", res.Total(), "replaced", res.Replaced)
		return res, nil
	}

	if err := imp.repo.Save(ctx, store.PutSource(current, src)); err != nil {
		imp.record(ctx, sourceID, start, nil, err)
		return nil, fmt.Errorf("importing %s: %w", sourceID, err)
	}

	if res.Replaced {
		res.Message = fmt.Sprintf("replaced %s with %d records", sourceID, res.Total())
	} else {
		res.Message = fmt.Sprintf("imported %d records into %s", res.Total(), sourceID)
	}
	imp.record(ctx, sourceID, start, res, nil)
	imp.log.Info("import complete",
		"source", sourceID,
		"records", res.Total(),
		"replaced", res.Replaced,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// UpdateEvents replaces the stored pattern events. Events without an id get
// a fresh one; events whose end precedes their start are rejected.
func (imp *Importer) UpdateEvents(ctx context.Context, events []models.PatternEvent) ([]models.PatternEvent, error) {
	out := make([]models.PatternEvent, len(events))
	for i, ev := range events {
		if err := validateEvent(ev); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		out[i] = ev
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()

	current, err := imp.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if imp.dryRun {
		return out, nil
	}
	if err := imp.repo.Save(ctx, store.UpdateEvents(current, out)); err != nil {
		return nil, err
	}
	imp.log.Info("events updated", "count", len(out))
	return out, nil
}

// RemoveSource deletes one source. Other sources and events are untouched.
func (imp *Importer) RemoveSource(ctx context.Context, id string) error {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	current, err := imp.repo.Load(ctx)
	if err != nil {
		return err
	}
	next, err := store.RemoveSource(current, id)
	if err != nil {
		return err
	}
	if imp.dryRun {
		return nil
	}
	if err := imp.repo.Save(ctx, next); err != nil {
		return err
	}
	imp.log.Info("source removed", "source", id)
	return nil
}

// ErrInvalidEvent is returned for events with missing or inverted dates.
var ErrInvalidEvent = errors.New("invalid event")

func validateEvent(ev models.PatternEvent) error {
	if ev.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	startDay, err := time.Parse(models.DateLayout, ev.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start date %q", ErrInvalidEvent, ev.StartDate)
	}
	if ev.EndDate == "" {
		return nil
	}
	endDay, err := time.Parse(models.DateLayout, ev.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end date %q", ErrInvalidEvent, ev.EndDate)
	}
	if endDay.Before(startDay) {
		return fmt.Errorf("%w: end date %s before start date %s", ErrInvalidEvent, ev.EndDate, ev.StartDate)
	}
	return nil
}

func resolveSourceID(id string) (string, error) {
	if id == "" {
		return DefaultSourceID, nil
	}
	if err := store.ValidateSourceID(id); err != nil {
		return "", err
	}
	return id, nil
}

// record appends an import log entry. Failures to write the log are only
// logged; the import outcome stands.
func (imp *Importer) record(ctx context.Context, sourceID string, start time.Time, res *ingest.Result, importErr error) {
	if imp.dryRun {
		return
	}
	ms := int(time.Since(start).Milliseconds())
	entry := ImportLogFor(sourceID, res, importErr)
	entry.DurationMs = &ms
	if err := imp.repo.InsertImportLog(ctx, entry); err != nil {
		imp.log.Warn("writing import log failed", "source", sourceID, "error", err)
	}
}

// ImportLogFor builds the history entry for one import outcome.
func ImportLogFor(sourceID string, res *ingest.Result, importErr error) storage.ImportLog {
	entry := storage.ImportLog{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    sourceID,
		Status:    storage.ImportSuccess,
	}
	if importErr != nil {
		msg := importErr.Error()
		entry.Status = storage.ImportError
		entry.ErrorMessage = &msg
		return entry
	}
	if res != nil {
		entry.Records = res.Total()
		entry.Replaced = res.Replaced
		if !res.Diagnostics.Empty() {
			diag := res.Diagnostics
			entry.Diagnostics = &diag
		}
	}
	return entry
}
