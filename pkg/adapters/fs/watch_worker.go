package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notecap/pkg/core"
)

// Watch reports modifications of the store document, including those made
// by other processes. Bursts are coalesced. The channel closes when ctx ends.
func (s *Store) Watch(ctx context.Context) (<-chan core.StoreEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: atomic renames replace the file's inode.
	if err := watcher.Add(s.config.Path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.config.Path, err)
	}

	events := make(chan core.StoreEvent, 16)
	w := &watchWorker{
		store:     s,
		watcher:   watcher,
		events:    events,
		debouncer: newDebouncer(50 * time.Millisecond),
	}
	s.setWatcherActive(true)

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		w.handleError(fmt.Errorf("store watcher: %w", err))
	}))
	return events, nil
}

type watchWorker struct {
	store     *Store
	watcher   *fsnotify.Watcher
	events    chan core.StoreEvent
	debouncer *debouncer
}

func (w *watchWorker) logger() *slog.Logger {
	return w.store.config.Logger
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.logger().Enabled(ctx, slog.LevelDebug) {
				w.logger().Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.logger().Error("watcher panic", "error", err)
			}
		}
	}()
	defer close(w.events)
	defer w.store.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// Wait for in-flight timers before the deferred close of events.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	target := filepath.Clean(w.store.file)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if isTempFile(event.Name) || filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger().Debug("store changed", "name", event.Name, "op", event.Op.String())
			w.debouncer.add(func() {
				// The channel may already be closed if the loop panicked.
				defer func() { _ = recover() }()
				select {
				case w.events <- core.StoreEvent{Path: target, Timestamp: time.Now()}:
				case <-ctx.Done():
				}
			})

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleError(wErr)
		}
	}
}

func (w *watchWorker) handleError(err error) {
	w.logger().Error("fsnotify error", "error", err)
	if w.store.config.ErrorHandler != nil {
		w.store.config.ErrorHandler(err)
	}
}
