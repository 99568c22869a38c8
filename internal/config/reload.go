package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches a config file and produces a brand new Config on
// every valid change, grounded on the teacher's reload_coordinator.go
// atomic-swap approach: a reload never mutates a Config in place, it
// replaces it wholesale and passes the new Config to onReload. Nothing
// in this module rebuilds a Session from a reloaded Config, and
// cmd/bytehotd does not start a Reloader.
type Reloader struct {
	path      string
	debounce  time.Duration
	logger    *slog.Logger
	onReload  func(*Config)
	onInvalid func(error)
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithDebounce overrides the default fsnotify debounce window.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) { r.debounce = d }
}

// WithInvalidHandler is called when a reload produces a Config that
// fails Validate; the previous Config stays live.
func WithInvalidHandler(f func(error)) ReloaderOption {
	return func(r *Reloader) { r.onInvalid = f }
}

// NewReloader builds a Reloader over path, invoking onReload with each
// newly validated Config.
func NewReloader(path string, logger *slog.Logger, onReload func(*Config), opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		path:      path,
		debounce:  500 * time.Millisecond,
		logger:    logger,
		onReload:  onReload,
		onInvalid: func(error) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Watch blocks until ctx is cancelled, reloading and validating the
// config file on every write and emitting the replacement Config via
// onReload. It never mutates a previously emitted Config.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.path); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(r.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			cfg, err := Load(r.path)
			if err != nil {
				r.logger.Warn("config reload rejected", "path", r.path, "error", err)
				r.onInvalid(err)
				continue
			}
			r.logger.Info("config reloaded", "path", r.path)
			r.onReload(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", "error", err)
		}
	}
}
