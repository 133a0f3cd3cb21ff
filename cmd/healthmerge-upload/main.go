package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/claude/healthmerge/internal/store"
	"github.com/claude/healthmerge/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type pathList []string

func (p *pathList) String() string     { return strings.Join(*p, ",") }
func (p *pathList) Set(v string) error { *p = append(*p, v); return nil }

func main() {
	var paths pathList
	serverURL := flag.String("server", "", "healthmerge server URL (e.g. https://healthmerge.tail1234.ts.net)")
	apiKey := flag.String("key", os.Getenv("HEALTHMERGE_AUTH_API_KEY"), "API key (default $HEALTHMERGE_AUTH_API_KEY)")
	flag.Var(&paths, "path", "export ZIP or directory of ZIPs (repeatable)")
	sourceID := flag.String("source", "", "data source id on the server (default \"withings\")")
	dryRun := flag.Bool("dry-run", false, "list what would be sent without contacting the server")
	history := flag.Int("history", 0, "print the last N uploads recorded on this machine and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("healthmerge-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	paths = append(paths, flag.Args()...)
	if len(paths) == 0 && *history == 0 {
		fmt.Fprintf(os.Stderr, "Usage: healthmerge-upload -server <URL> -key <API key> -path <export.zip|dir> [-source id] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun && *history == 0 {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}
	if *sourceID != "" {
		if err := store.ValidateSourceID(*sourceID); err != nil {
			log.Error("invalid source", "error", err)
			os.Exit(1)
		}
	}

	// Strip trailing slash from server URL
	*serverURL = strings.TrimRight(*serverURL, "/")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	stateDir := filepath.Join(homeDir, ".healthmerge-upload")

	state, err := upload.OpenStateDB(stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *history > 0 {
		if err := printHistory(state, *history); err != nil {
			log.Error("failed to read upload history", "error", err)
			os.Exit(1)
		}
		return
	}

	// Client stays nil in dry-run mode
	var client *upload.Client
	if !*dryRun {
		client = upload.NewClient(*serverURL, *apiKey)
	} else {
		log.Info("DRY RUN mode: archives will be listed but not sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader := upload.New(client, state, *sourceID, *dryRun, log)
	stats, err := uploader.Run(ctx, paths)
	if err != nil {
		log.Error("upload failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	if stats.FilesErrored > 0 {
		os.Exit(1)
	}
	log.Info("upload complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files uploaded:   %d\n", stats.FilesUploaded)
	fmt.Printf("  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Bytes sent:       %s\n", humanize.Bytes(uint64(stats.BytesSent)))
	fmt.Printf("  Records imported: %s\n", humanize.Comma(int64(stats.RecordsSent)))
	fmt.Println()
}

func printHistory(state *upload.StateDB, limit int) error {
	sent, err := state.History(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(sent) == 0 {
		fmt.Println("no uploads recorded")
		return nil
	}
	fmt.Println("=== Upload History ===")
	for _, s := range sent {
		source := s.Source
		if source == "" {
			source = "(default)"
		}
		fmt.Printf("  %-14s %8s %10s records  %-12s %s\n",
			humanize.Time(s.UploadedAt), humanize.Bytes(uint64(s.Size)),
			humanize.Comma(int64(s.Records)), source, s.Path)
	}
	fmt.Println()
	return nil
}
