// Package watch imports export archives dropped into a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler processes one archive that stopped changing.
type Handler func(ctx context.Context, path string) error

// Watcher waits for .zip files in one directory to settle, then hands each
// to a Handler. Files are handled one at a time.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	quiet     time.Duration
	handle    Handler
	log       *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// New starts watching dir. quiet is how long an archive must go without
// writes before it is handled.
func New(dir string, quiet time.Duration, handle Handler, log *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir %s is not a directory", abs)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsWatcher.Add(abs); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w", abs, err)
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       abs,
		quiet:     quiet,
		handle:    handle,
		log:       log,
		pending:   make(map[string]time.Time),
	}, nil
}

// IsArchive reports whether name looks like an export archive. Hidden and
// partial download files are ignored.
func IsArchive(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".zip")
}

// Run handles settled archives until ctx is canceled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsWatcher.Close()

	tick := w.quiet / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.log.Info("watching for archives", "dir", w.dir, "quiet", w.quiet)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			// Only track writes, creates and files renamed into place
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsArchive(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "dir", w.dir, "error", err)

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				if err := w.handle(ctx, path); err != nil {
					w.log.Warn("handling archive failed", "file", path, "error", err)
				}
			}
		}
	}
}

// settled removes and returns the pending files quiet since before now.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, last := range w.pending {
		if now.Sub(last) < w.quiet {
			continue
		}
		delete(w.pending, path)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, path)
	}
	return out
}
