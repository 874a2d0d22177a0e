package tlsutil

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadInterval is the mtime polling period for certificate files.
// Polling is the safety net; the fsnotify watcher usually fires first.
const DefaultReloadInterval = 5 * time.Minute

// Reloader keeps a Store current as certificate files change on disk, so a
// renewed certificate is served without a restart. It combines an fsnotify
// watcher (fast path) with periodic mtime polling (catches editors and
// mounts that fsnotify misses).
type Reloader struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewReloader creates a reloader for the given store.
func NewReloader(store *Store, interval time.Duration, logger *slog.Logger) *Reloader {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		store:    store,
		interval: interval,
		logger:   logger.With("component", "tls.reloader"),
	}
}

// Run watches and polls until ctx is done. It never returns an error for a
// failed reload: the previous certificate keeps serving and the failure is
// logged.
func (r *Reloader) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, path := range r.store.Paths() {
		if err := watcher.Add(path); err != nil {
			// A path can be briefly missing mid-renewal; polling covers it.
			r.logger.Warn("failed to watch certificate path", "path", path, "error", err)
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.reload("fsnotify", event.Name)
			// Renewal tools replace files; re-arm the watch.
			_ = watcher.Add(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("certificate watcher error", "error", err)
		case <-ticker.C:
			r.reload("poll", "")
		}
	}
}

func (r *Reloader) reload(trigger, path string) {
	if err := r.store.Reload(); err != nil {
		r.logger.Error("certificate reload failed",
			"trigger", trigger,
			"path", path,
			"error", err,
		)
		return
	}
	if trigger == "fsnotify" {
		r.logger.Info("certificates reloaded", "path", path)
	}
}
