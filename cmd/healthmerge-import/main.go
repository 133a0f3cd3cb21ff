package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"github.com/claude/healthmerge/internal/config"
	"github.com/claude/healthmerge/internal/importer"
	"github.com/claude/healthmerge/internal/ingest"
	"github.com/claude/healthmerge/internal/stats"
	"github.com/claude/healthmerge/internal/storage"
	"github.com/claude/healthmerge/internal/watch"
)

// plotDays is how many trailing days the -plot chart shows.
const plotDays = 90

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	archivePath := flag.String("path", "", "path to a Withings export ZIP")
	sourceID := flag.String("source", "", "data source id (default from config, then \"withings\")")
	dryRun := flag.Bool("dry-run", false, "parse and report counts without saving")
	plot := flag.Bool("plot", false, "print a rolling step average chart after importing")
	watchDir := flag.String("watch", "", "import every archive dropped into this directory until interrupted")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *archivePath == "" && *watchDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: healthmerge-import -config config.yaml -path export.zip [-source id] [-dry-run] [-plot]\n")
		fmt.Fprintf(os.Stderr, "       healthmerge-import -config config.yaml -watch <dir> [-source id]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *sourceID == "" {
		*sourceID = cfg.Import.SourceID
	}

	if cfg.Storage.Driver == storage.DriverPostgres {
		if err := storage.RunMigrations(cfg.Storage.Target(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Target(), cfg.Storage.Namespace)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	if *dryRun {
		log.Info("DRY RUN mode: nothing will be saved")
	}

	repo := storage.NewRepository(backend, log)
	imp := importer.New(repo, log, *dryRun)

	if *watchDir != "" {
		w, err := watch.New(*watchDir, 2*time.Second, func(ctx context.Context, path string) error {
			res, err := imp.Import(ctx, path, *sourceID)
			if err != nil {
				return err
			}
			printResult(path, res)
			return nil
		}, log)
		if err != nil {
			log.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		if err := w.Run(ctx); err != nil {
			log.Error("watcher failed", "error", err)
			os.Exit(1)
		}
		return
	}

	res, err := imp.Import(ctx, *archivePath, *sourceID)
	if err != nil {
		log.Error("import failed", "path", *archivePath, "error", err)
		os.Exit(1)
	}
	printResult(*archivePath, res)

	if !*dryRun {
		printSources(ctx, log, repo)
	}
	if *plot {
		if err := printPlot(ctx, repo, cfg); err != nil {
			log.Warn("plot failed", "error", err)
		}
	}
}

func printResult(path string, res *ingest.Result) {
	size := "?"
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	fmt.Println()
	fmt.Println("=== Import Summary ===")
	fmt.Printf("  Archive:          %s (%s)\n", path, size)
	fmt.Printf("  Source:           %s\n", res.SourceID)
	if res.DryRun {
		fmt.Printf("  Mode:             dry run\n")
	} else if res.Replaced {
		fmt.Printf("  Mode:             replaced existing source\n")
	} else {
		fmt.Printf("  Mode:             new source\n")
	}
	fmt.Println()
	fmt.Printf("  Steps:            %s\n", humanize.Comma(int64(res.Steps)))
	fmt.Printf("  Sleep sessions:   %s\n", humanize.Comma(int64(res.Sleep)))
	fmt.Printf("  Weight:           %s\n", humanize.Comma(int64(res.Weight)))
	fmt.Printf("  Blood pressure:   %s\n", humanize.Comma(int64(res.BloodPressure)))
	fmt.Printf("  Height:           %s\n", humanize.Comma(int64(res.Height)))
	fmt.Printf("  SpO2:             %s\n", humanize.Comma(int64(res.SpO2)))
	fmt.Printf("  Activities:       %s\n", humanize.Comma(int64(res.Activities)))
	fmt.Printf("  Total records:    %s\n", humanize.Comma(int64(res.Total())))

	d := res.Diagnostics
	if len(d.MissingEntries) > 0 {
		fmt.Printf("\n  Missing from archive:\n")
		for _, m := range d.MissingEntries {
			fmt.Printf("    - %s\n", m)
		}
	}
	if len(d.UnreadableEntries) > 0 {
		fmt.Printf("\n  Unreadable entries:\n")
		for _, u := range d.UnreadableEntries {
			fmt.Printf("    - %s\n", u)
		}
	}
	if len(d.SkippedRows) > 0 {
		fmt.Printf("\n  Skipped rows:\n")
		for metric, n := range d.SkippedRows {
			fmt.Printf("    - %s: %s\n", metric, humanize.Comma(int64(n)))
		}
	}
	fmt.Println()
}

func printSources(ctx context.Context, log *slog.Logger, repo *storage.Repository) {
	sources, err := repo.Sources(ctx)
	if err != nil {
		log.Warn("listing sources failed", "error", err)
		return
	}
	fmt.Println("=== Sources ===")
	for _, src := range sources {
		span := "no dated records"
		if src.FirstDate != "" {
			span = src.FirstDate + " to " + src.LastDate
		}
		fmt.Printf("  %-20s %10s records  %s  imported %s\n",
			src.ID, humanize.Comma(int64(src.Records)), span, humanize.Time(src.ImportedAt))
	}
	fmt.Println()
}

// printPlot charts the rolling step average over the last plotDays days of
// merged data.
func printPlot(ctx context.Context, repo *storage.Repository, cfg *config.Config) error {
	data, err := repo.LoadData(ctx)
	if err != nil {
		return err
	}
	values, err := stats.MetricValues(data, stats.MetricSteps, cfg.Stats.Mode())
	if err != nil {
		return err
	}
	series, err := stats.RollingSeries(values, cfg.Stats.RollingWindowDays, "", "")
	if err != nil {
		return err
	}
	if len(series) > plotDays {
		series = series[len(series)-plotDays:]
	}

	points := make([]float64, 0, len(series))
	for _, p := range series {
		if p.Average != nil {
			points = append(points, *p.Average)
		}
	}
	if len(points) == 0 {
		fmt.Println("no step data to plot")
		return nil
	}

	caption := fmt.Sprintf("%d-day rolling steps, %s to %s",
		cfg.Stats.RollingWindowDays, series[0].Date, series[len(series)-1].Date)
	fmt.Println(asciigraph.Plot(points,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Precision(0),
		asciigraph.Caption(caption),
	))
	fmt.Println()
	return nil
}
