package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notecap/pkg/bus"
	"github.com/aretw0/notecap/pkg/core"
	"github.com/aretw0/notecap/pkg/generator"
	"github.com/aretw0/notecap/pkg/render"
	"github.com/aretw0/notecap/pkg/session"
	"github.com/aretw0/notecap/pkg/windows"
)

// App is one window of notecap, wired end to end.
type App struct {
	Repo     *core.Repository
	Bus      core.Bus
	Session  *session.Controller
	Windows  *windows.Manager
	Renderer core.Renderer
	// Path is where the store lives ("memory" for the memory adapter).
	Path string

	logger    *slog.Logger
	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// New wires a window against the store at uri.
// The URI argument is adapter-specific (e.g., a directory for 'fs' and 'bolt').
//
//	app, err := notecap.New("./notes", notecap.WithAdapter("bolt"))
func New(uri string, opts ...Option) (*App, error) {
	o := parse(opts)
	ctx := context.Background()

	opened, err := openStore(ctx, uri, o)
	if err != nil {
		return nil, err
	}
	app := &App{Path: opened.Path, logger: o.logger}
	app.closers = append(app.closers, opened.Close)

	isReadOnly, _ := o.config["read_only"].(bool)
	app.Repo = core.NewRepository(opened.Store,
		core.WithRepositoryLogger(o.logger),
		core.WithReadOnly(isReadOnly),
	)

	b, err := openBus(ctx, o)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Bus = b
	app.closers = append(app.closers, b.Close)

	ws := o.windows
	if ws == nil {
		ws = windows.NewRegistry()
	}
	app.Windows = windows.NewManager(ws, app.Repo, windows.WithLogger(o.logger))

	app.Renderer = o.renderer
	if app.Renderer == nil {
		app.Renderer = render.Plain{}
	}

	gen := o.generator
	if gen == nil {
		gen = generator.NewMarkdown()
	}

	sessionOpts := []session.Option{
		session.WithBus(b),
		session.WithGenerator(gen),
		session.WithOpener(app.Windows),
		session.WithLogger(o.logger),
		session.WithListPolicy(o.policy),
	}
	if d, ok := o.config["generator_timeout"].(time.Duration); ok && d > 0 {
		sessionOpts = append(sessionOpts, session.WithGeneratorTimeout(d))
	}
	if watch, _ := o.config["store_watch"].(bool); watch {
		sessionOpts = append(sessionOpts, session.WithStoreWatch(true))
	}
	app.Session = session.New(app.Repo, sessionOpts...)

	return app, nil
}

func openBus(ctx context.Context, o *options) (core.Bus, error) {
	if o.bus != nil {
		return o.bus, nil
	}
	if dir, _ := o.config["spool_dir"].(string); dir != "" {
		spoolOpts := []bus.SpoolOption{bus.WithSpoolLogger(o.logger)}
		if ttl, ok := o.config["spool_ttl"].(time.Duration); ok && ttl > 0 {
			spoolOpts = append(spoolOpts, bus.WithSpoolTTL(ttl))
		}
		s, err := bus.OpenSpool(ctx, dir, o.label, spoolOpts...)
		if err != nil {
			return nil, fmt.Errorf("open spool bus: %w", err)
		}
		return s, nil
	}

	hubOpts := []bus.HubOption{bus.WithLogger(o.logger)}
	if size, ok := o.config["event_buffer"].(int); ok && size > 0 {
		hubOpts = append(hubOpts, bus.WithBuffer(size))
	}
	return bus.NewHub(hubOpts...).Endpoint(o.label), nil
}

// Start subscribes the window to the bus and loads its visible list.
func (a *App) Start(ctx context.Context) error {
	return a.Session.Start(ctx)
}

// Close stops the session, waits for pending generator calls and releases
// the bus and the store. Calling it more than once is safe.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.Session != nil {
			errs = append(errs, a.Session.Close())
			a.Session.Wait()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			errs = append(errs, a.closers[i]())
		}
		a.closeErr = errors.Join(errs...)
		a.logger.Debug("window closed", "path", a.Path, "error", a.closeErr)
	})
	return a.closeErr
}

// AppState is the introspection snapshot of a window.
type AppState struct {
	Path    string `json:"path"`
	Label   string `json:"label"`
	Session any    `json:"session"`
}

// State implements introspection.Introspectable.
func (a *App) State() any {
	return AppState{
		Path:    a.Path,
		Label:   a.Bus.Label(),
		Session: a.Session.State(),
	}
}

// ComponentType implements introspection.Introspectable.
func (a *App) ComponentType() string {
	return "notecap-app"
}

var _ introspection.Introspectable = (*App)(nil)
