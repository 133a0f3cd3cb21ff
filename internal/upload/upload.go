package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int
	BytesSent     int64
	RecordsSent   int
}

// Uploader pushes export archives to a healthmerge server, skipping archives
// whose content was already sent to the same source.
type Uploader struct {
	client   *Client
	state    *StateDB
	sourceID string
	dryRun   bool
	log      *slog.Logger
	stats    Stats
}

// New creates a new Uploader.
func New(client *Client, state *StateDB, sourceID string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client:   client,
		state:    state,
		sourceID: sourceID,
		dryRun:   dryRun,
		log:      log,
	}
}

// Run uploads every archive named by paths. A directory contributes the .zip
// files directly inside it, oldest first, so the newest export lands last.
func (u *Uploader) Run(ctx context.Context, paths []string) (*Stats, error) {
	files, err := collectArchives(paths)
	if err != nil {
		return &u.stats, err
	}
	u.stats.FilesTotal = len(files)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.uploadFile(ctx, f)
	}
	return &u.stats, nil
}

func (u *Uploader) uploadFile(ctx context.Context, f string) {
	info, err := os.Stat(f)
	if err != nil {
		u.log.Warn("stat failed", "file", f, "error", err)
		u.stats.FilesErrored++
		return
	}
	hash, err := HashFile(f)
	if err != nil {
		u.log.Warn("hash failed", "file", f, "error", err)
		u.stats.FilesErrored++
		return
	}
	abs, err := filepath.Abs(f)
	if err != nil {
		abs = f
	}

	prev, err := u.state.Lookup(ctx, abs, u.sourceID)
	if err != nil {
		u.log.Warn("state check failed", "file", f, "error", err)
	}
	if prev.Same(info.Size(), hash) {
		u.log.Debug("unchanged, skipping", "file", f, "sent", prev.UploadedAt)
		u.stats.FilesSkipped++
		return
	}

	if u.dryRun {
		u.log.Info("dry-run: would send", "file", f, "bytes", info.Size(), "source", u.sourceID)
		u.stats.FilesUploaded++
		return
	}

	archive, err := os.ReadFile(f)
	if err != nil {
		u.log.Warn("read failed", "file", f, "error", err)
		u.stats.FilesErrored++
		return
	}
	result, err := u.client.SendArchive(ctx, archive, u.sourceID)
	if err != nil {
		u.log.Warn("upload failed", "file", f, "error", err)
		u.stats.FilesErrored++
		return
	}

	sent := Sent{Path: abs, Source: u.sourceID, Size: info.Size(), Hash: hash, Records: result.Total()}
	if err := u.state.Record(ctx, sent); err != nil {
		u.log.Warn("failed to mark uploaded", "file", f, "error", err)
	}
	u.stats.FilesUploaded++
	u.stats.BytesSent += info.Size()
	u.stats.RecordsSent += result.Total()
	u.log.Info("uploaded archive",
		"file", f,
		"source", result.SourceID,
		"records", result.Total(),
		"replaced", result.Replaced,
	)
}

// collectArchives expands directories into their .zip files.
func collectArchives(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		type dated struct {
			path string
			mod  int64
		}
		var zips []dated
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
				continue
			}
			fi, err := e.Info()
			if err != nil {
				continue
			}
			zips = append(zips, dated{filepath.Join(p, e.Name()), fi.ModTime().UnixNano()})
		}
		sort.SliceStable(zips, func(i, j int) bool {
			if zips[i].mod != zips[j].mod {
				return zips[i].mod < zips[j].mod
			}
			return zips[i].path < zips[j].path
		})
		for _, z := range zips {
			out = append(out, z.path)
		}
	}
	return out, nil
}
