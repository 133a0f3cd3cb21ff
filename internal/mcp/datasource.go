package mcp

import (
	"context"

	"github.com/claude/healthmerge/internal/models"
	"github.com/claude/healthmerge/internal/storage"
	"github.com/claude/healthmerge/internal/store"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.Repository
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	LoadData(ctx context.Context) (models.HealthData, error)
	Sources(ctx context.Context) ([]store.SourceSummary, error)
	QueryImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error)
}

// Compile-time check: *storage.Repository satisfies DataSource.
var _ DataSource = (*storage.Repository)(nil)
