package core

import (
	"context"
	"encoding/json"
	"time"
)

// Store keys holding the two persisted collections.
const (
	KeyNotes    = "notes"
	KeyVersions = "versions"
)

// Store is the durable key-value collaborator behind the Repository.
// Adhering to this interface keeps the Repository independent of the
// underlying storage mechanism (JSON file, bbolt, memory).
type Store interface {
	// Get returns the value stored at key. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stages value at key. It is not durable until Save returns.
	Set(ctx context.Context, key string, value []byte) error

	// Save flushes every staged value durably.
	Save(ctx context.Context) error
}

// Locker is implemented by stores that can serialize read-modify-write
// cycles across independent writers (other windows, other processes).
type Locker interface {
	// Lock blocks until the writer lock is held. The returned func releases it.
	Lock(ctx context.Context) (func(), error)
}

// StoreEvent reports that the durable state changed underneath this process.
type StoreEvent struct {
	Path      string
	Timestamp time.Time
}

// Watchable is implemented by stores that can report external modifications.
type Watchable interface {
	Watch(ctx context.Context) (<-chan StoreEvent, error)
}

// Message is one emission on the Event Bus.
type Message struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Source  string          `json:"source"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// Handler receives bus messages. Handlers run off the emitter's goroutine.
type Handler func(Message)

// Unsubscribe removes a listener. Calling it more than once is safe.
type Unsubscribe func()

// Bus is one window's endpoint on the Cross-Window Event Bus.
// Delivery is best-effort and at-most-once, with no ordering guarantee
// across emissions.
type Bus interface {
	// Label is the window label this endpoint speaks for.
	Label() string

	// Broadcast emits event to every live window, including this one.
	Broadcast(ctx context.Context, event string, payload any) error

	// EmitTo emits event to the windows carrying label.
	EmitTo(ctx context.Context, label, event string, payload any) error

	// Listen registers handler for event.
	Listen(event string, handler Handler) (Unsubscribe, error)

	// Close detaches the endpoint and drops all of its listeners.
	Close() error
}

// Generator turns note content into a title and tags. It may fail.
type Generator interface {
	Generate(ctx context.Context, content string) (Suggestion, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, content string) (Suggestion, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, content string) (Suggestion, error) {
	return f(ctx, content)
}

// Renderer is the pluggable presentation collaborator: text in, text out.
type Renderer interface {
	Render(text string) (string, error)
}

// WindowSpec describes a window to create.
type WindowSpec struct {
	Label       string
	View        string
	Title       string
	Width       int
	Height      int
	Center      bool
	AlwaysOnTop bool
}

// WindowEventKind is a window lifecycle transition.
type WindowEventKind string

const (
	WindowCreated   WindowEventKind = "created"
	WindowDestroyed WindowEventKind = "destroyed"
)

// WindowSystem is the windowing subsystem the Editor Window Manager drives.
type WindowSystem interface {
	// Labels enumerates live windows.
	Labels(ctx context.Context) ([]string, error)

	// Create opens a new window. It does not guarantee focus.
	Create(ctx context.Context, spec WindowSpec) error

	// Focus raises an existing window.
	Focus(ctx context.Context, label string) error

	// Close destroys a window.
	Close(ctx context.Context, label string) error

	// Once runs fn the next time label goes through kind.
	Once(label string, kind WindowEventKind, fn func()) Unsubscribe
}
