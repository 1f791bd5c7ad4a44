package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notecap/pkg/core"
)

const (
	spoolExt       = ".msg"
	spoolTmpPrefix = ".spool-tmp-"

	// DefaultSpoolTTL is how long a message file stays in the spool.
	DefaultSpoolTTL = time.Minute
)

// Spool is a bus endpoint for window processes sharing a directory.
// Every emission is one message file written atomically into the
// directory; every endpoint watches the directory and dispatches the files
// it sees appear. A window started after a message was written never sees
// it, which matches the at-most-once contract.
type Spool struct {
	dir    string
	label  string
	ttl    time.Duration
	logger *slog.Logger

	listeners *registry
	cancel    context.CancelFunc
	stopped   chan struct{}

	mu     sync.Mutex
	closed bool
	seen   map[string]time.Time
}

// SpoolOption configures a Spool.
type SpoolOption func(*Spool)

// WithSpoolTTL sets how long message files are kept before pruning.
func WithSpoolTTL(ttl time.Duration) SpoolOption {
	return func(s *Spool) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSpoolLogger sets the logger.
func WithSpoolLogger(l *slog.Logger) SpoolOption {
	return func(s *Spool) {
		if l != nil {
			s.logger = l
		}
	}
}

// OpenSpool attaches window label to the spool directory dir and starts
// watching it. The endpoint lives until Close or until ctx ends.
func OpenSpool(ctx context.Context, dir, label string, opts ...SpoolOption) (*Spool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	s := &Spool{
		dir:       dir,
		label:     label,
		ttl:       DefaultSpoolTTL,
		logger:    slog.Default(),
		listeners: newRegistry(),
		stopped:   make(chan struct{}),
		seen:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch spool %s: %w", dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer close(s.stopped)
		defer watcher.Close()
		return s.watchLoop(ctx, watcher)
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("spool watcher failed", "dir", dir, "error", err)
	}))
	return s, nil
}

// Label implements core.Bus.
func (s *Spool) Label() string {
	return s.label
}

// Broadcast implements core.Bus.
func (s *Spool) Broadcast(ctx context.Context, event string, payload any) error {
	return s.emit(ctx, "", event, payload)
}

// EmitTo implements core.Bus.
func (s *Spool) EmitTo(ctx context.Context, label, event string, payload any) error {
	return s.emit(ctx, label, event, payload)
}

// Listen implements core.Bus.
func (s *Spool) Listen(event string, handler core.Handler) (core.Unsubscribe, error) {
	if s.isClosed() {
		return nil, core.ErrClosed
	}
	return s.listeners.add(event, handler), nil
}

// Close implements core.Bus. It waits for the watcher to stop.
func (s *Spool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	select {
	case <-s.stopped:
	case <-time.After(5 * time.Second):
	}
	s.listeners.clear()
	return nil
}

func (s *Spool) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Spool) emit(ctx context.Context, target, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return &core.BroadcastError{Event: event, Err: err}
	}
	if s.isClosed() {
		return &core.BroadcastError{Event: event, Err: core.ErrClosed}
	}

	msg, err := newMessage(s.label, target, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return &core.BroadcastError{Event: event, Err: err}
	}

	name := strconv.FormatInt(msg.SentAt.UnixNano(), 10) + "-" + msg.ID + spoolExt
	if err := s.writeMessage(name, data); err != nil {
		return &core.BroadcastError{Event: event, Err: err}
	}

	s.prune()
	return nil
}

func (s *Spool) writeMessage(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, spoolTmpPrefix+"*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

// prune removes message files older than the TTL.
func (s *Spool) prune() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), spoolExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(s.dir, e.Name()))
	}
	s.forget(cutoff)
}

// forget drops dispatch records older than cutoff. Their files are pruned
// by then, so they cannot be seen again.
func (s *Spool) forget(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, name)
		}
	}
}

func (s *Spool) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) error {
	// Listen-only windows never emit, so the dispatch records are also
	// aged out here.
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			s.forget(time.Now().Add(-s.ttl))

		case event, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("spool events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			base := filepath.Base(event.Name)
			if !strings.HasSuffix(base, spoolExt) || s.markSeen(base) {
				continue
			}
			s.deliver(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("spool errors channel closed")
			}
			s.logger.Error("spool watcher error", "error", err)
		}
	}
}

// markSeen records name and reports whether it was already dispatched.
func (s *Spool) markSeen(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[name]; ok {
		return true
	}
	s.seen[name] = time.Now()
	return false
}

func (s *Spool) deliver(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Pruned before we got to it.
		s.logger.Debug("spool message vanished", "path", path, "error", err)
		return
	}
	var msg core.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("malformed spool message", "path", path, "error", err)
		return
	}
	if msg.Target != "" && msg.Target != s.label {
		return
	}
	s.listeners.dispatch(msg, s.logger)
}

var _ core.Bus = (*Spool)(nil)
