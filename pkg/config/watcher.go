package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a changed file is reloaded.
const DefaultDebounceInterval = 250 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
//
// The parent directory is watched rather than the file itself so that
// editors and config-map mounts that replace the file by rename are seen.
type Watcher struct {
	// path is the cleaned configuration file path.
	path string

	// load reads and validates the file; defaults to ReloadConfig.
	load func() (*Config, error)

	// onReload receives every successfully reloaded configuration.
	onReload func(*Config)

	// watcher is the underlying fsnotify watcher.
	watcher *fsnotify.Watcher

	// debounce coalesces bursts of events into one reload.
	debounce *Debouncer

	// logger is the component logger.
	logger *slog.Logger
}

// NewWatcher creates a watcher for path. onReload is called with each new
// configuration after it has been validated and installed as the global.
func NewWatcher(path string, interval time.Duration, onReload func(*Config)) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		load:     ReloadConfig,
		onReload: onReload,
		watcher:  fw,
		debounce: NewDebouncer(interval),
		logger:   slog.Default().With("component", "config.watcher"),
	}, nil
}

// Watch blocks until ctx is cancelled, reloading on every debounced change.
func (w *Watcher) Watch(ctx context.Context) error {
	defer w.debounce.Stop()
	defer w.watcher.Close()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	w.logger.Info("config watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("config file event", "op", event.Op.String())
			w.debounce.Trigger(w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err != nil {
		// keep serving with the previous configuration
		w.logger.Error("config reload failed", "error", err)
		return
	}
	w.logger.Info("configuration reloaded", "models", len(cfg.Models))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Debouncer runs the most recent callback once no new trigger has arrived
// for the configured interval.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
