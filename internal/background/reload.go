package background

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/registry"
	"hangar/pkg/logging"
)

const reloadDebounce = 300 * time.Millisecond

// ReloadWorker watches the config file for changes via fsnotify (with a
// polling fallback for filesystems that don't deliver events, e.g. some
// network mounts), debounces bursts of writes the way editors produce them,
// and applies validated changes atomically through the Registry.
type ReloadWorker struct {
	path     string
	reg      *registry.Registry
	bus      *events.Bus
	useWatchdog bool
	pollInterval time.Duration

	mu        sync.Mutex
	lastApplied *config.Config
	debounce  *time.Timer
}

func NewReloadWorker(path string, reg *registry.Registry, bus *events.Bus, useWatchdog bool, pollInterval time.Duration) *ReloadWorker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &ReloadWorker{path: path, reg: reg, bus: bus, useWatchdog: useWatchdog, pollInterval: pollInterval}
}

// Run blocks until ctx is cancelled, triggering Reload on every debounced
// filesystem event and, if useWatchdog is set, on every poll tick too (as a
// fallback for filesystems that don't deliver notify events reliably).
func (w *ReloadWorker) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("ReloadWorker", "fsnotify unavailable, falling back to polling only: %v", err)
		w.runPollOnly(ctx)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		logging.Warn("ReloadWorker", "failed to watch %s, falling back to polling only: %v", dir, err)
		w.runPollOnly(ctx)
		return
	}

	var pollTicker *time.Ticker
	var pollC <-chan time.Time
	if w.useWatchdog {
		pollTicker = time.NewTicker(w.pollInterval)
		defer pollTicker.Stop()
		pollC = pollTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			w.scheduleDebounced(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("ReloadWorker", "watch error: %v", err)
		case <-pollC:
			w.Reload()
		}
	}
}

func (w *ReloadWorker) runPollOnly(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Reload()
		}
	}
}

func (w *ReloadWorker) scheduleDebounced(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(reloadDebounce, w.Reload)
}

// Reload parses, validates, diffs, and applies the config at w.path. On
// parse/validation failure it logs and emits reload_failed, leaving running
// state untouched, per the spec's explicit non-disruption guarantee.
func (w *ReloadWorker) Reload() {
	newCfg, err := config.Load(w.path)
	if err != nil {
		logging.Error("ReloadWorker", err, "config reload failed, leaving running state untouched")
		if w.bus != nil {
			w.bus.Emit(events.Event{Reason: events.ReasonReloadFailed, Message: err.Error()})
		}
		return
	}

	diff := w.reg.ApplyConfig(newCfg)

	w.mu.Lock()
	w.lastApplied = newCfg
	w.mu.Unlock()

	logging.Info("ReloadWorker", "reload applied: %d added, %d removed, %d updated, %d unchanged",
		len(diff.Added), len(diff.Removed), len(diff.Updated), len(diff.Unchanged))
	if w.bus != nil {
		w.bus.Emit(events.Event{Reason: events.ReasonReloadCompleted, Data: map[string]interface{}{
			"added": diff.Added, "removed": diff.Removed, "updated": diff.Updated, "unchanged": diff.Unchanged,
		}})
	}
}
