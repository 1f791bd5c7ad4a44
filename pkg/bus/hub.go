package bus

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notecap/pkg/core"
)

// DefaultBuffer is the per-endpoint inbox size.
const DefaultBuffer = 100

// Hub is an in-process bus. Each window gets an Endpoint; messages are
// queued per endpoint and dispatched on the endpoint's own goroutine.
// A full inbox drops the message.
type Hub struct {
	buffer int
	logger *slog.Logger

	mu        sync.RWMutex
	endpoints map[*Endpoint]struct{}

	delivered atomic.Int64
	dropped   atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-endpoint inbox size. Zero means DefaultBuffer.
func WithBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.buffer = size
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		buffer:    DefaultBuffer,
		logger:    slog.Default(),
		endpoints: make(map[*Endpoint]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Endpoint attaches a window labelled label.
func (h *Hub) Endpoint(label string) *Endpoint {
	ep := &Endpoint{
		hub:       h,
		label:     label,
		listeners: newRegistry(),
		inbox:     make(chan core.Message, h.buffer),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	h.endpoints[ep] = struct{}{}
	h.mu.Unlock()

	go ep.dispatchLoop()
	return ep
}

// Labels lists the labels of attached endpoints.
func (h *Hub) Labels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.endpoints))
	for ep := range h.endpoints {
		out = append(out, ep.label)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) publish(msg core.Message) {
	h.mu.RLock()
	targets := make([]*Endpoint, 0, len(h.endpoints))
	for ep := range h.endpoints {
		if msg.Target == "" || ep.label == msg.Target {
			targets = append(targets, ep)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.logger.Debug("no window received message", "event", msg.Event, "target", msg.Target)
	}
	for _, ep := range targets {
		if ep.enqueue(msg) {
			h.delivered.Add(1)
		} else {
			h.dropped.Add(1)
			h.logger.Debug("bus inbox full, message dropped", "event", msg.Event, "window", ep.label)
		}
	}
}

func (h *Hub) detach(ep *Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.endpoints, ep)
}

// HubState exposes internal state for observability.
type HubState struct {
	Windows   []string `json:"windows"`
	Buffer    int      `json:"buffer"`
	Delivered int64    `json:"delivered"`
	Dropped   int64    `json:"dropped"`
}

// State implements introspection.Introspectable.
func (h *Hub) State() any {
	return HubState{
		Windows:   h.Labels(),
		Buffer:    h.buffer,
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// ComponentType implements introspection.Component.
func (h *Hub) ComponentType() string {
	return "bus-hub"
}

var _ introspection.Introspectable = (*Hub)(nil)
var _ introspection.Component = (*Hub)(nil)

// Endpoint is one window's attachment to a Hub.
type Endpoint struct {
	hub       *Hub
	label     string
	listeners *registry
	inbox     chan core.Message

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// Label implements core.Bus.
func (e *Endpoint) Label() string {
	return e.label
}

// Broadcast implements core.Bus.
func (e *Endpoint) Broadcast(ctx context.Context, event string, payload any) error {
	return e.emit(ctx, "", event, payload)
}

// EmitTo implements core.Bus.
func (e *Endpoint) EmitTo(ctx context.Context, label, event string, payload any) error {
	return e.emit(ctx, label, event, payload)
}

func (e *Endpoint) emit(ctx context.Context, target, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return &core.BroadcastError{Event: event, Err: err}
	}
	if e.isClosed() {
		return &core.BroadcastError{Event: event, Err: core.ErrClosed}
	}
	msg, err := newMessage(e.label, target, event, payload)
	if err != nil {
		return err
	}
	e.hub.publish(msg)
	return nil
}

// Listen implements core.Bus.
func (e *Endpoint) Listen(event string, handler core.Handler) (core.Unsubscribe, error) {
	if e.isClosed() {
		return nil, core.ErrClosed
	}
	return e.listeners.add(event, handler), nil
}

// Close implements core.Bus.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.hub.detach(e)
		close(e.done)
		e.listeners.clear()
	})
	return nil
}

func (e *Endpoint) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *Endpoint) enqueue(msg core.Message) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	select {
	case e.inbox <- msg:
		return true
	default:
		return false
	}
}

func (e *Endpoint) dispatchLoop() {
	for {
		select {
		case <-e.done:
			return
		case msg := <-e.inbox:
			e.listeners.dispatch(msg, e.hub.logger)
		}
	}
}

var _ core.Bus = (*Endpoint)(nil)
