// Package bus implements the Cross-Window Event Bus: a best-effort,
// at-most-once, unordered pub/sub channel addressed by window label.
//
// Two transports are provided. Hub connects windows living in one process;
// Spool connects window processes through a shared directory.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/notecap/pkg/core"
)

// Events exchanged between windows.
const (
	// EventNoteUpdated carries a full Note after a window durably persisted it.
	EventNoteUpdated = "global-note-updated"
	// EventToggleWindow is a UI-only signal with no payload semantics.
	EventToggleWindow = "toggle-window"
	// EventFocusWindow asks the receiving window to raise itself.
	EventFocusWindow = "focus-window"
)

// BroadcastNote emits EventNoteUpdated with n as payload.
func BroadcastNote(ctx context.Context, b core.Bus, n core.Note) error {
	return b.Broadcast(ctx, EventNoteUpdated, n)
}

// ListenNotes subscribes fn to EventNoteUpdated as emitted by other windows.
// Echoes of this endpoint's own broadcasts are skipped, since the emitter
// already applied the note locally. Payloads that do not decode into a Note
// with an id are dropped.
func ListenNotes(b core.Bus, logger *slog.Logger, fn func(core.Note)) (core.Unsubscribe, error) {
	self := b.Label()
	return b.Listen(EventNoteUpdated, func(m core.Message) {
		if m.Source == self {
			return
		}
		var n core.Note
		if err := m.Decode(&n); err != nil || n.ID == "" {
			logger.Debug("dropping malformed note update", "source", m.Source, "error", err)
			return
		}
		fn(n)
	})
}

func newMessage(source, target, event string, payload any) (core.Message, error) {
	msg := core.Message{
		ID:     core.NewID(),
		Event:  event,
		Source: source,
		Target: target,
		SentAt: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return core.Message{}, &core.BroadcastError{Event: event, Err: fmt.Errorf("encode payload: %w", err)}
		}
		msg.Payload = data
	}
	return msg, nil
}

// registry holds the listeners of one endpoint.
type registry struct {
	mu      sync.Mutex
	next    int
	byEvent map[string]map[int]core.Handler
}

func newRegistry() *registry {
	return &registry{byEvent: make(map[string]map[int]core.Handler)}
}

func (r *registry) add(event string, h core.Handler) core.Unsubscribe {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := r.next
	if r.byEvent[event] == nil {
		r.byEvent[event] = make(map[int]core.Handler)
	}
	r.byEvent[event][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.byEvent[event], id)
		})
	}
}

func (r *registry) handlers(event string) []core.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := make([]core.Handler, 0, len(r.byEvent[event]))
	for _, h := range r.byEvent[event] {
		hs = append(hs, h)
	}
	return hs
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, hs := range r.byEvent {
		n += len(hs)
	}
	return n
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.byEvent)
}

// dispatch runs every handler for msg. A panicking handler is logged and
// does not stop the others.
func (r *registry) dispatch(msg core.Message, logger *slog.Logger) {
	for _, h := range r.handlers(msg.Event) {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("bus handler panic", "event", msg.Event, "panic", rec)
				}
			}()
			h(msg)
		}()
	}
}
