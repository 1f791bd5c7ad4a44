package windows

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notecap/pkg/bus"
	"github.com/aretw0/notecap/pkg/core"
)

const (
	labelExt = ".window"
	// pendingPrefix marks a label claimed by an opener whose window process
	// has not announced itself yet. The opener's pid follows it.
	pendingPrefix = "pending:"
)

// ErrWindowExists reports that a label is held by a live window process or
// by a pending open.
var ErrWindowExists = errors.New("window already open")

// ProcessConfig configures a ProcessSystem.
type ProcessConfig struct {
	// Dir holds one label file per live window.
	Dir string
	// Command is the executable started per window. Defaults to the
	// running executable.
	Command string
	// Args builds the child arguments for a window.
	Args func(spec core.WindowSpec) []string
	// Bus carries focus requests to window processes.
	Bus core.Bus
	// Stdio attaches children to this process' standard streams.
	Stdio  bool
	Logger *slog.Logger
}

// ProcessSystem is a WindowSystem where every window is a separate process.
// A window is live while its label file exists in Dir. Create claims the
// file before spawning, the window process takes it over with Announce and
// removes it on exit. Lifecycle hooks are fed by watching Dir: a label is
// created once its file holds the window pid.
type ProcessSystem struct {
	cfg     ProcessConfig
	hooks   *hooks
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewProcessSystem starts watching cfg.Dir. Stop releases the watcher.
func NewProcessSystem(ctx context.Context, cfg ProcessConfig) (*ProcessSystem, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("window directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		cfg.Command = exe
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create window directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p := &ProcessSystem{
		cfg:     cfg,
		hooks:   newHooks(),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer close(p.stopped)
		defer watcher.Close()
		return p.watchLoop(ctx, watcher)
	}, lifecycle.WithErrorHandler(func(err error) {
		cfg.Logger.Error("window watcher failed", "dir", cfg.Dir, "error", err)
	}))
	return p, nil
}

// Stop ends the watcher. Running window processes are left alone.
func (p *ProcessSystem) Stop() {
	p.cancel()
	select {
	case <-p.stopped:
	case <-time.After(5 * time.Second):
	}
}

func (p *ProcessSystem) watchLoop(ctx context.Context, w *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			label, ok := labelFromFile(filepath.Base(event.Name))
			if !ok {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				if _, pending, err := readHolder(event.Name); err == nil && !pending {
					p.hooks.fire(label, core.WindowCreated)
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				p.hooks.fire(label, core.WindowDestroyed)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.cfg.Logger.Warn("window watcher error", "error", err)
		}
	}
}

// Labels implements core.WindowSystem.
func (p *ProcessSystem) Labels(context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if label, ok := labelFromFile(e.Name()); ok {
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Create implements core.WindowSystem. It claims the label, starts the
// window process and returns without waiting for it to announce itself.
// A label held by a live window or a pending open fails with
// ErrWindowExists and spawns nothing.
func (p *ProcessSystem) Create(ctx context.Context, spec core.WindowSpec) error {
	path := p.labelPath(spec.Label)
	self := os.Getpid()
	err := claim(path, pendingPrefix+strconv.Itoa(self), func(pid int, _ bool) bool {
		return !processAlive(pid)
	})
	if err != nil {
		return fmt.Errorf("claim window %q: %w", spec.Label, err)
	}

	var args []string
	if p.cfg.Args != nil {
		args = p.cfg.Args(spec)
	}
	cmd := exec.Command(p.cfg.Command, args...)
	cmd.Env = append(os.Environ(), "NOTECAP_WINDOW_LABEL="+spec.Label)
	if p.cfg.Stdio {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	}
	if err := cmd.Start(); err != nil {
		release(path, func(pid int, pending bool) bool { return pending && pid == self })
		return err
	}
	child := cmd.Process.Pid
	p.cfg.Logger.Debug("window process started", "label", spec.Label, "pid", child)

	lifecycle.Go(context.WithoutCancel(ctx), func(context.Context) error {
		err := cmd.Wait()
		// A child that died before announcing, or without withdrawing,
		// must not leave the label held.
		release(path, func(pid int, pending bool) bool {
			return (pending && pid == self) || (!pending && pid == child)
		})
		p.cfg.Logger.Debug("window process exited", "label", spec.Label, "error", err)
		return nil
	})
	return nil
}

// Focus implements core.WindowSystem by asking the window process to raise
// itself over the bus.
func (p *ProcessSystem) Focus(ctx context.Context, label string) error {
	if !p.live(label) {
		return fmt.Errorf("window %q not found", label)
	}
	if p.cfg.Bus == nil {
		return fmt.Errorf("no bus to reach window %q", label)
	}
	return p.cfg.Bus.EmitTo(ctx, label, bus.EventFocusWindow, nil)
}

// Close implements core.WindowSystem by interrupting the window process.
func (p *ProcessSystem) Close(_ context.Context, label string) error {
	pid, pending, err := readHolder(p.labelPath(label))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("window %q not found", label)
		}
		return fmt.Errorf("window %q: %w", label, err)
	}
	if pending {
		return fmt.Errorf("window %q is still starting", label)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(os.Interrupt)
}

// Once implements core.WindowSystem.
func (p *ProcessSystem) Once(label string, kind core.WindowEventKind, fn func()) core.Unsubscribe {
	return p.hooks.add(label, kind, fn)
}

func (p *ProcessSystem) live(label string) bool {
	_, err := os.Stat(p.labelPath(label))
	return err == nil
}

func (p *ProcessSystem) labelPath(label string) string {
	return filepath.Join(p.cfg.Dir, label+labelExt)
}

// Announce marks the calling process as the live window label in dir,
// taking over a pending claim or a label left behind by a dead process.
// A label held by another live window fails with ErrWindowExists.
// The returned func withdraws the label, unless another process has taken
// it since, and must be called on every exit path.
func Announce(dir, label string) (func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, label+labelExt)
	self := os.Getpid()

	err := claim(path, strconv.Itoa(self), func(pid int, pending bool) bool {
		return pending || !processAlive(pid)
	})
	if err != nil {
		return nil, fmt.Errorf("announce window %q: %w", label, err)
	}
	return func() {
		release(path, func(pid int, pending bool) bool { return !pending && pid == self })
	}, nil
}

// claim writes content to path unless a holder is already recorded there.
// A holder for which stale reports true, or an unreadable one, is replaced.
func claim(path, content string, stale func(pid int, pending bool) bool) error {
	err := place(path, content, true)
	if !errors.Is(err, fs.ErrExist) {
		return err
	}
	pid, pending, err := readHolder(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return place(path, content, true)
	case err == nil && !stale(pid, pending):
		return ErrWindowExists
	}
	return place(path, content, false)
}

// place writes content to path atomically. An exclusive place fails with
// fs.ErrExist when path is taken.
func place(path, content string, exclusive bool) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".claim-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if exclusive {
		return os.Link(tmp.Name(), path)
	}
	return os.Rename(tmp.Name(), path)
}

// release removes path when its holder matches.
func release(path string, match func(pid int, pending bool) bool) {
	pid, pending, err := readHolder(path)
	if err != nil || !match(pid, pending) {
		return
	}
	_ = os.Remove(path)
}

// readHolder returns the pid recorded in a label file and whether it is a
// pending claim.
func readHolder(path string) (pid int, pending bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, err
	}
	text := strings.TrimSpace(string(data))
	text, pending = strings.CutPrefix(text, pendingPrefix)
	pid, err = strconv.Atoi(text)
	if err != nil {
		return 0, pending, fmt.Errorf("bad label file %s: %w", filepath.Base(path), err)
	}
	return pid, pending, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func labelFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, labelExt) {
		return "", false
	}
	return strings.TrimSuffix(name, labelExt), true
}

var _ core.WindowSystem = (*ProcessSystem)(nil)
