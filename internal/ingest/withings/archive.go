// Package withings parses Withings account export archives.
package withings

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/claude/healthmerge/internal/ingest"
	"github.com/claude/healthmerge/internal/models"
)

var (
	ErrInvalidArchive = errors.New("not a valid zip archive")
	ErrNotExport      = errors.New("archive contains no csv entries")
)

// Entry patterns, matched case-insensitively against the entry's path.
var (
	stepsEntry      = regexp.MustCompile(`(?i)(^|/)aggregates?_steps\.csv$`)
	distanceEntry   = regexp.MustCompile(`(?i)(^|/)aggregates?_distance\.csv$`)
	elevationEntry  = regexp.MustCompile(`(?i)(^|/)aggregates?_elevation\.csv$`)
	caloriesEntry   = regexp.MustCompile(`(?i)(^|/)aggregates?_calories_earned\.csv$`)
	activitiesEntry = regexp.MustCompile(`(?i)activities\.csv$`)
	sleepEntry      = regexp.MustCompile(`(?i)(^|/)sleep\.csv$`)
	weightEntry     = regexp.MustCompile(`(?i)(^|/)weight\.csv$`)
	bpEntry         = regexp.MustCompile(`(?i)(^|/)(bp|blood_pressure)\.csv$`)
	heightEntry     = regexp.MustCompile(`(?i)(^|/)height\.csv$`)
	spo2Entry       = regexp.MustCompile(`(?i)(^|/)(spo2|blood_oxygen|oxygen_saturation)\.csv$`)
)

// Result is a parsed archive.
type Result struct {
	Metrics     models.HealthMetrics
	Diagnostics ingest.Diagnostics
}

type archive struct {
	files []*zip.File
	log   *slog.Logger
}

// find returns the first entry whose path matches pattern.
func (a *archive) find(pattern *regexp.Regexp) *zip.File {
	for _, f := range a.files {
		if pattern.MatchString(strings.ReplaceAll(f.Name, `\`, "/")) {
			return f
		}
	}
	return nil
}

// open locates and decodes the entry for metric. A nil table means the metric
// is absent; the reason is recorded in diag.
func (a *archive) open(pattern *regexp.Regexp, metric string, diag *ingest.Diagnostics) *table {
	f := a.find(pattern)
	if f == nil {
		a.log.Debug("archive entry not found", "metric", metric)
		diag.Missing(metric)
		return nil
	}
	t, err := readTable(f)
	if err != nil {
		a.log.Warn("skipping unreadable archive entry", "file", f.Name, "error", err)
		diag.Unreadable(f.Name)
		return nil
	}
	return t
}

// partial is the isolated output of one metric parser.
type partial struct {
	metrics models.HealthMetrics
	diag    ingest.Diagnostics
}

type parserFunc func(a *archive) partial

var parsers = []parserFunc{
	parseSteps,
	parseSleep,
	parseWeight,
	parseBloodPressure,
	parseHeight,
	parseSpO2,
	parseActivities,
}

// ParseFile opens the archive at path and parses it.
func ParseFile(ctx context.Context, path string, log *slog.Logger) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return Parse(ctx, f, info.Size(), log)
}

// Parse runs every metric parser concurrently over the archive and merges
// their output. A missing or unreadable entry only empties its metric.
func Parse(ctx context.Context, r io.ReaderAt, size int64, log *slog.Logger) (*Result, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	a := &archive{log: log}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		a.files = append(a.files, f)
	}
	if len(a.files) == 0 {
		return nil, ErrNotExport
	}

	parts := make([]partial, len(parsers))
	g, gctx := errgroup.WithContext(ctx)
	for i, parse := range parsers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = parse(a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parsing archive: %w", err)
	}

	res := &Result{}
	for _, p := range parts {
		m := p.metrics
		res.Metrics.Steps = append(res.Metrics.Steps, m.Steps...)
		res.Metrics.Sleep = append(res.Metrics.Sleep, m.Sleep...)
		res.Metrics.Weight = append(res.Metrics.Weight, m.Weight...)
		res.Metrics.BloodPressure = append(res.Metrics.BloodPressure, m.BloodPressure...)
		res.Metrics.Height = append(res.Metrics.Height, m.Height...)
		res.Metrics.SpO2 = append(res.Metrics.SpO2, m.SpO2...)
		res.Metrics.Activities = append(res.Metrics.Activities, m.Activities...)
		res.Diagnostics.Merge(p.diag)
	}
	res.Metrics = res.Metrics.Normalized()

	log.Info("parsed archive",
		"entries", len(a.files),
		"steps", len(res.Metrics.Steps),
		"sleep", len(res.Metrics.Sleep),
		"weight", len(res.Metrics.Weight),
		"blood_pressure", len(res.Metrics.BloodPressure),
		"height", len(res.Metrics.Height),
		"spo2", len(res.Metrics.SpO2),
		"activities", len(res.Metrics.Activities),
	)
	if !res.Diagnostics.Empty() {
		log.Info("archive diagnostics",
			"missing", res.Diagnostics.MissingEntries,
			"unreadable", res.Diagnostics.UnreadableEntries,
			"skipped_rows", res.Diagnostics.SkippedRows,
		)
	}
	return res, nil
}
