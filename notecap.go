package notecap

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/notecap/internal/platform"
	"github.com/aretw0/notecap/pkg/core"
)

// --- Types ---

// App is one wired window: Repository, bus endpoint, session and editor
// window manager.
type App = platform.App

// Note is the public alias for a captured note.
type Note = core.Note

// ListPolicy selects which persisted notes a window shows.
type ListPolicy = core.ListPolicy

// DefaultLabel is the label of the main window.
const DefaultLabel = platform.DefaultLabel

// --- Configuration ---

// Option defines a functional option for configuring notecap.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore allows injecting a custom storage adapter.
func WithStore(s core.Store) Option {
	return platform.WithStore(s)
}

// WithAdapter allows specifying the storage adapter to use by name:
// "fs" (default), "bolt" or "memory".
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithBus injects the Event Bus endpoint of this window.
func WithBus(b core.Bus) Option {
	return platform.WithBus(b)
}

// WithSpool connects windows of different processes through dir.
func WithSpool(dir string) Option {
	return platform.WithSpool(dir)
}

// WithSpoolTTL sets how long spool messages are kept.
func WithSpoolTTL(ttl time.Duration) Option {
	return platform.WithSpoolTTL(ttl)
}

// WithEventBuffer allows specifying the size of the in-process bus inbox.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithLabel sets the window label.
func WithLabel(label string) Option {
	return platform.WithLabel(label)
}

// WithGenerator sets the Title/Tag Generator.
func WithGenerator(g core.Generator) Option {
	return platform.WithGenerator(g)
}

// WithGeneratorTimeout bounds every generator call.
func WithGeneratorTimeout(d time.Duration) Option {
	return platform.WithGeneratorTimeout(d)
}

// WithRenderer sets the presentation collaborator.
func WithRenderer(r core.Renderer) Option {
	return platform.WithRenderer(r)
}

// WithWindowSystem sets the windowing subsystem.
func WithWindowSystem(ws core.WindowSystem) Option {
	return platform.WithWindowSystem(ws)
}

// WithListPolicy selects which persisted notes the window reconciles.
func WithListPolicy(p core.ListPolicy) Option {
	return platform.WithListPolicy(p)
}

// WithFile sets the store document (or database) name.
func WithFile(name string) Option {
	return platform.WithFile(name)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".notecap").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the store directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLockTimeout bounds how long a writer waits for the store lock.
func WithLockTimeout(d time.Duration) Option {
	return platform.WithLockTimeout(d)
}

// WithStoreWatch reconciles the window when another process writes the store.
func WithStoreWatch(enabled bool) Option {
	return platform.WithStoreWatch(enabled)
}

// WithReadOnly rejects every mutation and bypasses the dev sandbox.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// New wires a window against the store at path.
func New(path string, opts ...Option) (*App, error) {
	return platform.New(path, opts...)
}

// Open wires and starts a window in one step.
func Open(ctx context.Context, path string, opts ...Option) (*App, error) {
	app, err := New(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// --- Safety & Utils ---

// ResolveStorePath determines the actual store directory based on safety rules.
func ResolveStorePath(userPath string, forceTemp bool) string {
	return platform.ResolveStorePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a store root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
