// Package watch re-runs a callback whenever a single file changes on disk.
// Bursts of writes are coalesced with a debounce timer and callbacks never
// overlap.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Func is called after the watched file settles. An error is logged and
// watching continues; only context cancellation stops the loop.
type Func func(ctx context.Context) error

// File watches path until ctx is canceled, calling fn after each burst of
// changes has been quiet for debounce. The parent directory is watched
// rather than the file itself, so editors that save by renaming a temp
// file over the original are still seen.
func File(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, fn Func) error {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolving %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch: adding %s: %w", dir, err)
	}

	logger.Info("watching file for changes",
		slog.String("path", abs),
		slog.Duration("debounce", debounce),
	)

	return loop(ctx, abs, debounce, w.Events, w.Errors, logger, fn)
}

// loop is the event loop behind File, split out so tests can feed events.
func loop(
	ctx context.Context, path string, debounce time.Duration,
	events <-chan fsnotify.Event, errs <-chan error, logger *slog.Logger, fn Func,
) error {
	if logger == nil {
		logger = slog.Default()
	}

	timer := time.NewTimer(debounce)
	timer.Stop() // idle until the first event
	defer timer.Stop()

	timerActive := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if !relevant(ev, path) {
				continue
			}

			logger.Debug("file event",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()),
			)

			if !timer.Stop() && timerActive {
				<-timer.C
			}

			timer.Reset(debounce)
			timerActive = true

		case err, ok := <-errs:
			if !ok {
				return nil
			}

			logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			timerActive = false

			if err := fn(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				logger.Error("watch callback failed", slog.String("error", err.Error()))
			}
		}
	}
}

// relevant reports whether ev is a content change to path. Pure chmod
// events and removals are ignored; a rename onto path shows up as Create.
func relevant(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != path {
		return false
	}

	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
