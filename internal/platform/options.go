package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/notecap/pkg/core"
)

// options holds the internal configuration for a notecap window.
type options struct {
	store     core.Store
	bus       core.Bus
	generator core.Generator
	renderer  core.Renderer
	windows   core.WindowSystem
	logger    *slog.Logger
	adapter   string
	label     string
	policy    core.ListPolicy
	config    map[string]interface{}
}

// Option defines a functional option for configuring notecap.
type Option func(*options)

// DefaultLabel is the label of the main window.
const DefaultLabel = "main"

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: "fs",
		label:   DefaultLabel,
		policy:  core.AllNotes,
		config:  make(map[string]interface{}),
	}
}

func parse(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a custom store. The adapter option is then ignored.
func WithStore(s core.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithAdapter selects the store adapter by name: "fs" (default), "bolt"
// or "memory".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithBus injects the bus endpoint of this window.
func WithBus(b core.Bus) Option {
	return func(o *options) {
		o.bus = b
	}
}

// WithSpool connects the window to other window processes through the
// spool directory dir instead of an in-process hub.
func WithSpool(dir string) Option {
	return func(o *options) {
		o.config["spool_dir"] = dir
	}
}

// WithSpoolTTL sets how long spool message files are kept.
func WithSpoolTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.config["spool_ttl"] = ttl
	}
}

// WithEventBuffer sets the in-process hub inbox size. Zero means default.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithLabel sets the window label. Defaults to "main".
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithGenerator sets the Title/Tag Generator. Defaults to the local
// markdown heuristic.
func WithGenerator(g core.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithGeneratorTimeout bounds every generator call.
func WithGeneratorTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["generator_timeout"] = d
	}
}

// WithRenderer sets the presentation collaborator.
func WithRenderer(r core.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithWindowSystem sets the windowing subsystem. Defaults to an in-memory
// registry.
func WithWindowSystem(ws core.WindowSystem) Option {
	return func(o *options) {
		o.windows = ws
	}
}

// WithListPolicy selects which persisted notes the window reconciles.
// Defaults to every note.
func WithListPolicy(p core.ListPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithFile sets the document name of the fs adapter (or the database name
// of the bolt adapter).
func WithFile(name string) Option {
	return func(o *options) {
		o.config["file"] = name
	}
}

// WithSystemDir sets the hidden bookkeeping directory (e.g. ".notecap").
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithMustExist ensures the store directory must already exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithLockTimeout bounds how long a writer waits for the store lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["lock_timeout"] = d
	}
}

// WithStoreWatch re-reconciles the window when another process writes the
// store.
func WithStoreWatch(enabled bool) Option {
	return func(o *options) {
		o.config["store_watch"] = enabled
	}
}

// WithWatcherErrorHandler registers a callback for store watcher failures,
// which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Every mutation returns ErrReadOnly.
// 2. Directories are not created.
// 3. Dev Safety Lock (go run temp dir) is BYPASSED (uses real path).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) the store is redirected to a temporary
// directory to prevent accidental data loss.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}
