package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/healthmerge/internal/stats"
)

// Defaults fill in tool arguments the caller leaves out.
type Defaults struct {
	Mode    stats.CountingMode
	Weekend stats.WeekdaySet
	Window  int
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, defaults Defaults, version string, log *slog.Logger) *server.MCPServer {
	if defaults.Mode == "" {
		defaults.Mode = stats.DefaultCountingMode
	}
	if len(defaults.Weekend) == 0 {
		defaults.Weekend = stats.DefaultWeekend()
	}
	if defaults.Window < 1 {
		defaults.Window = 7
	}

	s := server.NewMCPServer("healthmerge", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("healthmerge merges health exports from several devices. Query reconciled sleep, weekend versus weekday comparisons, per-event statistics and rolling trends. Dates are YYYY-MM-DD."),
	)

	h := &handlers{ds: ds, defaults: defaults, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListSources, Handler: h.listSources},
		server.ServerTool{Tool: toolGetSleepStats, Handler: h.getSleepStats},
		server.ServerTool{Tool: toolGetDayTypeStats, Handler: h.getDayTypeStats},
		server.ServerTool{Tool: toolGetEventStats, Handler: h.getEventStats},
		server.ServerTool{Tool: toolGetRollingSeries, Handler: h.getRollingSeries},
		server.ServerTool{Tool: toolGetImportHistory, Handler: h.getImportHistory},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resSources, Handler: h.sourcesResource},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds       DataSource
	defaults Defaults
	log      *slog.Logger
}

var resSources = mcp.NewResource(
	"healthmerge://sources",
	"Data Sources",
	mcp.WithResourceDescription("Every imported data source with its record count and date span"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) sourcesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sources, err := h.ds.Sources(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(sources)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
