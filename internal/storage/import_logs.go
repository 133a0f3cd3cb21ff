package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude/healthmerge/internal/ingest"
)

// maxImportLogs caps the persisted import history.
const maxImportLogs = 50

// ImportLog represents a single import operation's outcome.
type ImportLog struct {
	ID           string              `json:"id"`
	CreatedAt    time.Time           `json:"created_at"`
	Source       string              `json:"source"`
	Status       string              `json:"status"`
	Records      int                 `json:"records"`
	Replaced     bool                `json:"replaced"`
	DurationMs   *int                `json:"duration_ms"`
	ErrorMessage *string             `json:"error_message"`
	Diagnostics  *ingest.Diagnostics `json:"diagnostics,omitempty"`
}

// Import log statuses.
const (
	ImportSuccess = "success"
	ImportError   = "error"
)

// InsertImportLog prepends an entry, dropping the oldest beyond the cap.
func (r *Repository) InsertImportLog(ctx context.Context, entry ImportLog) error {
	logs, err := r.QueryImportLogs(ctx, 0)
	if err != nil {
		return err
	}
	logs = append([]ImportLog{entry}, logs...)
	if len(logs) > maxImportLogs {
		logs = logs[:maxImportLogs]
	}

	b, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("encoding import logs: %w", err)
	}
	if err := r.kv.Put(ctx, ImportLogsKey, b); err != nil {
		return fmt.Errorf("inserting import log: %w", err)
	}
	return nil
}

// QueryImportLogs returns the most recent import logs, newest first. A
// non-positive limit returns all of them.
func (r *Repository) QueryImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	raw, found, err := r.kv.Get(ctx, ImportLogsKey)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	logs := []ImportLog{}
	if !found {
		return logs, nil
	}
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("decoding import logs: %w", err)
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
