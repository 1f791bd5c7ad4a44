// Package session implements the Note Session Controller: the per-window
// state machine that composes, resumes, branches and submits notes against
// the Repository and keeps the window's visible list converged with the
// other windows through the Event Bus.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notecap/pkg/bus"
	"github.com/aretw0/notecap/pkg/core"
	"github.com/aretw0/notecap/pkg/generator"
	"github.com/aretw0/notecap/pkg/windows"
)

// Separator joins a resumed note's content to the draft.
const Separator = "\n\n---\n\n"

// DefaultGeneratorTimeout bounds one Title/Tag Generator call.
const DefaultGeneratorTimeout = 30 * time.Second

// State is the composer state of one window.
type State int

const (
	// Idle is an empty composer.
	Idle State = iota
	// Composing has draft content and no resume target.
	Composing
	// Resuming has a draft prefixed with another note's content.
	Resuming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	case Resuming:
		return "resuming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener opens editor windows. *windows.Manager implements it.
type Opener interface {
	OpenForEdit(ctx context.Context, note core.Note) (windows.Opened, error)
}

// Controller is the Note Session Controller of one window.
// All methods are safe for concurrent use; bus deliveries and generator
// completions are applied under the same lock as user operations.
type Controller struct {
	repo       *core.Repository
	bus        core.Bus
	gen        core.Generator
	opener     Opener
	logger     *slog.Logger
	policy     core.ListPolicy
	genTimeout time.Duration
	clock      core.Clock
	watchStore bool
	onToggle   func()

	mu            sync.Mutex
	draft         string
	resumeID      string
	resumeContent string
	list          *noteList
	started       bool
	unsubs        []core.Unsubscribe
	stopWatch     context.CancelFunc
	toggles       int
	generated     int
	dropped       int

	inflight sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithBus connects the controller to the Event Bus.
func WithBus(b core.Bus) Option {
	return func(c *Controller) {
		c.bus = b
	}
}

// WithGenerator sets the Title/Tag Generator. Without one, submitted notes
// keep their local fallback title and tags.
func WithGenerator(g core.Generator) Option {
	return func(c *Controller) {
		c.gen = g
	}
}

// WithOpener sets the Editor Window Manager.
func WithOpener(o Opener) Option {
	return func(c *Controller) {
		c.opener = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithListPolicy selects which persisted notes reconciliation pulls in.
func WithListPolicy(p core.ListPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithGeneratorTimeout bounds each generator call.
func WithGeneratorTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.genTimeout = d
		}
	}
}

// WithClock overrides the time source used for edit timestamps.
func WithClock(clock core.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithStoreWatch re-runs reconciliation whenever the store reports an
// external modification. Only stores implementing core.Watchable qualify.
func WithStoreWatch(enabled bool) Option {
	return func(c *Controller) {
		c.watchStore = enabled
	}
}

// WithToggleHandler runs fn whenever this window receives toggle-window.
func WithToggleHandler(fn func()) Option {
	return func(c *Controller) {
		c.onToggle = fn
	}
}

// New creates a Controller over repo. The list policy defaults to every
// note so that a freshly opened window converges with all persisted notes.
func New(repo *core.Repository, opts ...Option) *Controller {
	c := &Controller{
		repo:       repo,
		logger:     slog.Default(),
		policy:     core.AllNotes,
		genTimeout: DefaultGeneratorTimeout,
		clock:      core.SystemClock,
		list:       newNoteList(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the bus and runs one reconciliation pass.
// Close releases everything Start acquired; Start cleans up after itself
// when it fails.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	if err := c.subscribe(); err != nil {
		c.mu.Unlock()
		_ = c.Close()
		return err
	}
	c.mu.Unlock()

	if _, err := c.Reconcile(ctx); err != nil {
		_ = c.Close()
		return err
	}

	if c.watchStore {
		c.startWatch(ctx)
	}
	return nil
}

func (c *Controller) subscribe() error {
	if c.bus == nil {
		return nil
	}
	unsubNotes, err := bus.ListenNotes(c.bus, c.logger, c.applyRemote)
	if err != nil {
		return fmt.Errorf("listen %s: %w", bus.EventNoteUpdated, err)
	}
	c.unsubs = append(c.unsubs, unsubNotes)

	unsubToggle, err := c.bus.Listen(bus.EventToggleWindow, func(core.Message) { c.toggled() })
	if err != nil {
		return fmt.Errorf("listen %s: %w", bus.EventToggleWindow, err)
	}
	c.unsubs = append(c.unsubs, unsubToggle)
	return nil
}

func (c *Controller) startWatch(ctx context.Context) {
	w, ok := c.repo.Store().(core.Watchable)
	if !ok {
		c.logger.Debug("store does not support watching")
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	events, err := w.Watch(watchCtx)
	if err != nil {
		cancel()
		c.logger.Warn("failed to watch store", "error", err)
		return
	}

	c.mu.Lock()
	c.stopWatch = cancel
	c.mu.Unlock()

	lifecycle.Go(watchCtx, func(ctx context.Context) error {
		for range events {
			if _, err := c.Reconcile(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("reconcile after store change failed", "error", err)
			}
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("store watch loop failed", "error", err)
	}))
}

// Close unsubscribes from the bus and stops watching the store.
// In-flight generator calls keep running; see Wait.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
	c.started = false
	return nil
}

// Wait blocks until every in-flight generator call has settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Reconcile merges the persisted notes selected by the list policy into
// the visible list, keyed by id. It returns how many notes were new.
func (c *Controller) Reconcile(ctx context.Context) (int, error) {
	notes, err := c.repo.ListRecent(ctx, c.policy)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, n := range notes {
		if c.list.upsert(n) {
			added++
		}
	}
	c.logger.Debug("reconciled", "policy", c.policy.String(), "fetched", len(notes), "added", added)
	return added, nil
}

func (c *Controller) applyRemote(n core.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.upsert(n)
}

func (c *Controller) toggled() {
	c.mu.Lock()
	c.toggles++
	fn := c.onToggle
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Status is the current composer state.
func (c *Controller) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status()
}

func (c *Controller) status() State {
	switch {
	case c.resumeID != "":
		return Resuming
	case c.draft != "":
		return Composing
	default:
		return Idle
	}
}

// Draft returns the composer content.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// ResumeTarget returns the id being resumed, or "".
func (c *Controller) ResumeTarget() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeID
}

// Edit replaces the draft. It never touches the store.
func (c *Controller) Edit(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Resume toggles resuming note.
//
// Resuming a note prepends its content and Separator to the draft (just
// the content when the draft is empty) and bumps the note's updated_at.
// Resuming the same note again cancels: the prefix is stripped when the
// draft still starts with it, the draft is cleared when it equals the
// note's content exactly, and it is left alone otherwise.
func (c *Controller) Resume(ctx context.Context, note core.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resumeID == note.ID {
		prefix := c.resumeContent + Separator
		switch {
		case strings.HasPrefix(c.draft, prefix):
			c.draft = strings.TrimPrefix(c.draft, prefix)
		case c.draft == c.resumeContent:
			c.draft = ""
		}
		c.resumeID, c.resumeContent = "", ""
		return
	}

	if c.draft == "" {
		c.draft = note.Content
	} else {
		c.draft = note.Content + Separator + c.draft
	}
	c.resumeID, c.resumeContent = note.ID, note.Content

	touched, err := c.repo.Touch(ctx, note.ID)
	switch {
	case err == nil:
		c.list.upsert(touched)
		c.broadcast(ctx, touched)
	case errors.Is(err, core.ErrNotFound):
		c.logger.Debug("resumed note is not persisted", "id", note.ID)
	default:
		c.logger.Warn("failed to bump resumed note", "id", note.ID, "error", err)
	}
}

// Branch forks note in the Repository, adds the branch to the visible list
// and seeds the draft with note's content. The resume state is untouched.
func (c *Controller) Branch(ctx context.Context, note core.Note) (core.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	branched, err := c.repo.Branch(ctx, note.ID)
	if err != nil {
		return core.Note{}, err
	}
	c.list.upsert(branched)
	c.draft = note.Content
	c.broadcast(ctx, branched)
	return branched, nil
}

// Submit turns the draft into a new note. A blank draft is a no-op and
// returns the zero Note.
//
// The note is persisted and visible with the local fallback title and tags
// before the generator is asked for better ones in the background. When
// resuming, the resumed note is consumed: removed from the list and the
// Repository once the new note is durable. On a storage failure the draft
// and resume state are left as they were.
func (c *Controller) Submit(ctx context.Context) (core.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	content := c.draft
	if strings.TrimSpace(content) == "" {
		return core.Note{}, nil
	}

	title := generator.FallbackTitle(content)
	tags := []string{generator.FallbackTag(content)}
	note, err := c.repo.Create(ctx, content, title, tags)
	if err != nil {
		return core.Note{}, err
	}

	if consumed := c.resumeID; consumed != "" {
		if err := c.repo.Remove(ctx, consumed); err != nil {
			c.logger.Error("failed to remove resumed note", "id", consumed, "error", err)
		} else {
			c.list.remove(consumed)
		}
		c.resumeID, c.resumeContent = "", ""
	}

	c.list.upsert(note)
	c.draft = ""
	c.broadcast(ctx, note)
	c.suggest(ctx, note)
	return note, nil
}

// suggest asks the generator for a title and tags without blocking.
func (c *Controller) suggest(ctx context.Context, note core.Note) {
	if c.gen == nil {
		return
	}
	c.inflight.Add(1)
	lifecycle.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		defer c.inflight.Done()

		genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
		defer cancel()
		s, err := c.gen.Generate(genCtx, note.Content)
		if err != nil {
			c.logger.Warn("title generation failed, keeping fallback", "id", note.ID, "error", err)
			return nil
		}
		c.applySuggestion(ctx, note.ID, s)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("title generation task failed", "id", note.ID, "error", err)
	}))
}

// applySuggestion updates note id in place. Suggestions for notes this
// window no longer tracks, or that are gone from the store, are dropped.
func (c *Controller) applySuggestion(ctx context.Context, id string, s core.Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.list.has(id) {
		c.dropped++
		c.logger.Debug("dropping suggestion for untracked note", "id", id)
		return
	}
	current, ok, err := c.repo.Get(ctx, id)
	if err != nil {
		c.logger.Warn("failed to load note for suggestion", "id", id, "error", err)
		return
	}
	if !ok {
		c.dropped++
		c.logger.Debug("dropping suggestion for deleted note", "id", id)
		return
	}

	if title := strings.TrimSpace(s.Title); title != "" {
		current.Title = title
	}
	if len(s.Tags) > 0 {
		current.Tags = s.Tags
	}
	if err := c.repo.Upsert(ctx, current); err != nil {
		c.logger.Warn("failed to persist suggestion", "id", id, "error", err)
		return
	}
	c.list.upsert(current)
	c.generated++
	c.broadcast(ctx, current)
}

// Favorite flips the favorite flag of note id.
func (c *Controller) Favorite(ctx context.Context, id string) (core.Note, error) {
	return c.flip(ctx, id, func(n *core.Note) { n.Favorite = !n.Favorite })
}

// Pin flips the pinned flag of note id.
func (c *Controller) Pin(ctx context.Context, id string) (core.Note, error) {
	return c.flip(ctx, id, func(n *core.Note) { n.Pinned = !n.Pinned })
}

// flip applies a metadata change. Metadata never bumps version or
// updated_at. The persisted copy is preferred over the visible one.
func (c *Controller) flip(ctx context.Context, id string, fn func(*core.Note)) (core.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	note, ok, err := c.repo.Get(ctx, id)
	if err != nil {
		return core.Note{}, err
	}
	if !ok {
		if note, ok = c.list.get(id); !ok {
			return core.Note{}, &core.NotFoundError{ID: id}
		}
	}

	fn(&note)
	if err := c.repo.Upsert(ctx, note); err != nil {
		return core.Note{}, err
	}
	c.list.upsert(note)
	c.broadcast(ctx, note)
	return note, nil
}

// Delete removes note id from the Repository and the visible list. When it
// was the resume target only the association is cleared; the draft stays.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.Remove(ctx, id); err != nil {
		return err
	}
	c.list.remove(id)
	if c.resumeID == id {
		c.resumeID, c.resumeContent = "", ""
	}
	return nil
}

// SaveEdit is the editor window save path: it replaces the content of note
// id, re-derives the title from the first line, bumps updated_at, persists
// and broadcasts.
func (c *Controller) SaveEdit(ctx context.Context, id, content string) (core.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	note, err := c.repo.MustGet(ctx, id)
	if err != nil {
		return core.Note{}, err
	}
	note.Content = content
	note.Title = generator.FallbackTitle(content)
	now := c.clock()
	if now.Before(note.CreatedAt) {
		now = note.CreatedAt
	}
	note.UpdatedAt = now

	if err := c.repo.Upsert(ctx, note); err != nil {
		return core.Note{}, err
	}
	c.list.upsert(note)
	c.broadcast(ctx, note)
	return note, nil
}

// OpenForEdit opens the editor window of note id through the Window
// Manager, using the visible copy of the note when there is one.
func (c *Controller) OpenForEdit(ctx context.Context, id string) (windows.Opened, error) {
	c.mu.Lock()
	note, ok := c.list.get(id)
	c.mu.Unlock()

	if !ok {
		var err error
		if note, err = c.repo.MustGet(ctx, id); err != nil {
			return windows.Opened{}, err
		}
	}
	if c.opener == nil {
		return windows.Opened{}, &core.WindowError{Label: windows.EditorLabel(id), Err: errors.New("no window manager")}
	}
	return c.opener.OpenForEdit(ctx, note)
}

// Toggle emits toggle-window to this window.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.bus == nil {
		c.toggled()
		return nil
	}
	return c.bus.EmitTo(ctx, c.bus.Label(), bus.EventToggleWindow, nil)
}

// Notes returns the visible list, pinned notes first, otherwise in the
// order they were received.
func (c *Controller) Notes() []core.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.display()
}

// Note returns the visible copy of note id.
func (c *Controller) Note(id string) (core.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.get(id)
}

// Stats summarizes the visible list as of now.
func (c *Controller) Stats(now time.Time) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeStats(c.list.notes(), now)
}

func (c *Controller) broadcast(ctx context.Context, n core.Note) {
	if c.bus == nil {
		return
	}
	if err := bus.BroadcastNote(ctx, c.bus, n); err != nil {
		c.logger.Warn("broadcast failed", "id", n.ID, "error", err)
	}
}
