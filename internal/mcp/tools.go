package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/healthmerge/internal/models"
	"github.com/claude/healthmerge/internal/stats"
)

// --- Tool definitions ---

var modeOption = mcp.WithString("mode",
	mcp.Description("How to combine a bed mat and a wrist tracker recording the same night. Defaults to the server setting."),
	mcp.Enum(string(stats.MatFirst), string(stats.TrackerFirst), string(stats.Average)),
)

var toolListSources = mcp.NewTool("list_sources",
	mcp.WithDescription("List imported data sources with their record counts, import time and covered date span."),
)

var toolGetSleepStats = mcp.NewTool("get_sleep_stats",
	mcp.WithDescription("Sleep statistics over reconciled nights: average duration and stages, heart rate, bedtime and wake time with their consistency, and the average difference between bed mat and tracker on nights both recorded."),
	modeOption,
	mcp.WithString("start", mcp.Description("Start date (YYYY-MM-DD). Defaults to the first night.")),
	mcp.WithString("end", mcp.Description("End date (YYYY-MM-DD). Defaults to the last night.")),
	mcp.WithBoolean("include_nights", mcp.Description("Also return every reconciled night.")),
)

var toolGetDayTypeStats = mcp.NewTool("get_day_type_stats",
	mcp.WithDescription("Compare weekend and weekday averages for steps and sleep. Returns two rows plus the per-column magnitude ranges."),
	modeOption,
	mcp.WithString("weekend", mcp.Description("Comma separated weekday indices counted as weekend, 0 = Sunday. Defaults to the server setting.")),
	mcp.WithString("start", mcp.Description("Start date (YYYY-MM-DD).")),
	mcp.WithString("end", mcp.Description("End date (YYYY-MM-DD).")),
)

var toolGetEventStats = mcp.NewTool("get_event_stats",
	mcp.WithDescription("One row per user-defined event (trip, illness, training block) with steps, sleep and weight change over the event's dates."),
	modeOption,
)

var toolGetRollingSeries = mcp.NewTool("get_rolling_series",
	mcp.WithDescription("Daily values with a trailing rolling average, one point per calendar day."),
	mcp.WithString("metric", mcp.Required(), mcp.Description("Metric to plot"),
		mcp.Enum(stats.MetricSteps, stats.MetricSleep, stats.MetricWeight)),
	mcp.WithNumber("window", mcp.Description("Rolling window in days. Defaults to the server setting.")),
	modeOption,
	mcp.WithString("start", mcp.Description("Start date (YYYY-MM-DD). Defaults to the first day with data.")),
	mcp.WithString("end", mcp.Description("End date (YYYY-MM-DD). Defaults to the last day with data.")),
)

var toolGetImportHistory = mcp.NewTool("get_import_history",
	mcp.WithDescription("Recent imports, newest first, with record counts, errors and skipped rows."),
	mcp.WithNumber("limit", mcp.Description("Maximum entries. Defaults to 10.")),
)

// --- Tool handlers ---

func (h *handlers) mode(req mcp.CallToolRequest) (stats.CountingMode, error) {
	v := req.GetString("mode", "")
	if v == "" {
		return h.defaults.Mode, nil
	}
	return stats.ParseCountingMode(v)
}

// rangeData loads data restricted to the request's start and end.
func (h *handlers) rangeData(ctx context.Context, req mcp.CallToolRequest) (models.HealthData, *mcp.CallToolResult) {
	start, end := req.GetString("start", ""), req.GetString("end", "")
	if err := stats.ValidateRange(start, end); err != nil {
		return models.HealthData{}, mcp.NewToolResultError("invalid date range: " + err.Error())
	}
	data, err := h.ds.LoadData(ctx)
	if err != nil {
		return models.HealthData{}, mcp.NewToolResultError("query failed: " + err.Error())
	}
	return stats.FilterData(data, start, end), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := h.ds.Sources(ctx)
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(map[string]any{"sources": sources})
}

func (h *handlers) getSleepStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := h.mode(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, errResult := h.rangeData(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	out := map[string]any{
		"mode":  mode,
		"stats": stats.CalculateSleepStats(data.Sleep, mode),
	}
	if req.GetBool("include_nights", false) {
		out["nights"] = stats.ReconcileSleep(data.Sleep, mode)
	}
	return jsonResult(out)
}

func (h *handlers) getDayTypeStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := h.mode(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weekend := h.defaults.Weekend
	if v := req.GetString("weekend", ""); v != "" {
		weekend, err = stats.ParseWeekdaySet(v)
		if err != nil {
			return mcp.NewToolResultError("invalid weekend: " + err.Error()), nil
		}
	}
	data, errResult := h.rangeData(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	rows := stats.CalculateDayTypeStats(data.Steps, data.Sleep, weekend, mode)
	return jsonResult(map[string]any{
		"mode":    mode,
		"weekend": weekend.Days(),
		"rows":    rows,
		"ranges":  stats.BuildMagnitudeRanges(rows),
	})
}

func (h *handlers) getEventStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := h.mode(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := h.ds.LoadData(ctx)
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if len(data.Events) == 0 {
		return mcp.NewToolResultText("No events defined."), nil
	}

	rows := stats.CalculateEventStats(data, mode)
	return jsonResult(map[string]any{
		"mode":   mode,
		"rows":   rows,
		"ranges": stats.BuildMagnitudeRanges(rows),
	})
}

func (h *handlers) getRollingSeries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metric, err := req.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError("metric parameter is required"), nil
	}
	mode, err := h.mode(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	window := req.GetInt("window", h.defaults.Window)
	if window < 1 {
		return mcp.NewToolResultError("window must be at least 1"), nil
	}

	data, err := h.ds.LoadData(ctx)
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	values, err := stats.MetricValues(data, metric, mode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	points, err := stats.RollingSeries(values, window, req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"metric": metric,
		"window": window,
		"points": points,
	})
}

func (h *handlers) getImportHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logs, err := h.ds.QueryImportLogs(ctx, req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(map[string]any{"imports": logs})
}
