package windows

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notecap/pkg/core"
)

// Registry is an in-memory WindowSystem. Lifecycle hooks run synchronously
// on the goroutine that created or closed the window.
type Registry struct {
	mu      sync.Mutex
	windows map[string]core.WindowSpec
	focused string
	hooks   *hooks
	created int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		windows: make(map[string]core.WindowSpec),
		hooks:   newHooks(),
	}
}

// Labels implements core.WindowSystem.
func (r *Registry) Labels(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.windows))
	for l := range r.windows {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

// Create implements core.WindowSystem.
func (r *Registry) Create(_ context.Context, spec core.WindowSpec) error {
	r.mu.Lock()
	if _, ok := r.windows[spec.Label]; ok {
		r.mu.Unlock()
		return fmt.Errorf("window %q already exists", spec.Label)
	}
	r.windows[spec.Label] = spec
	r.created++
	r.mu.Unlock()

	r.hooks.fire(spec.Label, core.WindowCreated)
	return nil
}

// Focus implements core.WindowSystem.
func (r *Registry) Focus(_ context.Context, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[label]; !ok {
		return fmt.Errorf("window %q not found", label)
	}
	r.focused = label
	return nil
}

// Close implements core.WindowSystem.
func (r *Registry) Close(_ context.Context, label string) error {
	r.mu.Lock()
	if _, ok := r.windows[label]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("window %q not found", label)
	}
	delete(r.windows, label)
	if r.focused == label {
		r.focused = ""
	}
	r.mu.Unlock()

	r.hooks.fire(label, core.WindowDestroyed)
	return nil
}

// Once implements core.WindowSystem.
func (r *Registry) Once(label string, kind core.WindowEventKind, fn func()) core.Unsubscribe {
	return r.hooks.add(label, kind, fn)
}

// Focused returns the label of the focused window, if any.
func (r *Registry) Focused() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

// Spec returns the spec a live window was created with.
func (r *Registry) Spec(label string) (core.WindowSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.windows[label]
	return s, ok
}

// RegistryState exposes the registry for observability.
type RegistryState struct {
	Open    int    `json:"open"`
	Created int    `json:"created"`
	Focused string `json:"focused,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Registry) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistryState{Open: len(r.windows), Created: r.created, Focused: r.focused}
}

// ComponentType implements introspection.Component.
func (r *Registry) ComponentType() string {
	return "window-registry"
}

var (
	_ core.WindowSystem           = (*Registry)(nil)
	_ introspection.Introspectable = (*Registry)(nil)
)

// hooks holds one-shot lifecycle callbacks keyed by label and kind.
type hooks struct {
	mu   sync.Mutex
	next int
	m    map[hookKey]map[int]func()
}

type hookKey struct {
	label string
	kind  core.WindowEventKind
}

func newHooks() *hooks {
	return &hooks{m: make(map[hookKey]map[int]func())}
}

func (h *hooks) add(label string, kind core.WindowEventKind, fn func()) core.Unsubscribe {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	key := hookKey{label, kind}
	if h.m[key] == nil {
		h.m[key] = make(map[int]func())
	}
	h.m[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.m[key], id)
		})
	}
}

// fire runs and removes every hook registered for label and kind.
func (h *hooks) fire(label string, kind core.WindowEventKind) {
	key := hookKey{label, kind}
	h.mu.Lock()
	pending := h.m[key]
	delete(h.m, key)
	h.mu.Unlock()

	ids := make([]int, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		pending[id]()
	}
}
