// Package watcher polls the tracked root for file changes and triggers an
// incremental re-index. Adaptive-interval snapshot diffing against a single
// root path and a single store, widening the poll interval as the tracked
// file count grows.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/DeusData/codegraph/internal/config"
	"github.com/DeusData/codegraph/internal/discover"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// IndexFunc is the callback invoked when the watched tree has changed.
type IndexFunc func(ctx context.Context) error

// Watcher polls cfg.RootPath for file changes and triggers indexFn when any
// are detected. It holds no store reference directly — indexFn owns the
// store and runs internal/incremental.Run against it.
type Watcher struct {
	cfg      *config.Config
	indexFn  IndexFunc
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
	ctx      context.Context
}

// New creates a Watcher over cfg.RootPath. indexFn is called when file
// changes are detected.
func New(cfg *config.Config, indexFn IndexFunc) *Watcher {
	return &Watcher{cfg: cfg, indexFn: indexFn}
}

// Run blocks until ctx is cancelled, polling at baseInterval and only
// re-scanning the tree once the adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll captures a fresh snapshot and compares it with the previous one.
// The first poll only establishes the baseline; later polls trigger indexFn
// when the tree has changed.
func (w *Watcher) poll() {
	now := time.Now()
	if !w.nextPoll.IsZero() && now.Before(w.nextPoll) {
		return
	}

	if _, err := os.Stat(w.cfg.RootPath); err != nil {
		slog.Warn("watcher.root_gone", "path", w.cfg.RootPath)
		w.nextPoll = now.Add(maxInterval)
		return
	}

	snap, err := captureSnapshot(w.cfg.RootPath, w.cfg)
	if err != nil {
		slog.Warn("watcher.snapshot", "err", err)
		w.nextPoll = now.Add(w.interval)
		return
	}

	interval := pollInterval(len(snap))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "files", len(snap))
		w.snapshot = snap
		w.interval = interval
		w.nextPoll = now.Add(interval)
		return
	}

	if snapshotsEqual(w.snapshot, snap) {
		w.interval = interval
		w.nextPoll = now.Add(interval)
		return
	}

	slog.Info("watcher.changed", "files", len(snap))
	if err := w.indexFn(w.ctx); err != nil {
		slog.Warn("watcher.index", "err", err)
		w.nextPoll = now.Add(interval) // keep old snapshot, retry next cycle
		return
	}

	w.snapshot = snap
	w.interval = pollInterval(len(snap))
	w.nextPoll = now.Add(w.interval)
}

// captureSnapshot walks the file tree using discover.Discover and captures
// mtime+size for each file.
func captureSnapshot(rootPath string, cfg *config.Config) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(context.Background(), rootPath, discover.FromConfig(cfg))
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with
// the same mtime and size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count: 1s base + 1s
// per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	ms := 1000 + (fileCount/500)*1000
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}
