package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"
)

// Discarder is implemented by stores that can drop values staged by Set
// without flushing them. The Repository calls it when a mutation aborts.
type Discarder interface {
	Discard()
}

// Repository is the single authoritative mapping from note id to Note for
// one process. Every mutation is a read-modify-write of the full persisted
// collections followed by a durable flush, so concurrent writers in other
// windows are never clobbered by a stale cached view.
type Repository struct {
	store    Store
	clock    Clock
	newID    IDFunc
	logger   *slog.Logger
	readOnly bool

	mu       sync.Mutex
	lastSync *time.Time
	writes   int
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithClock overrides the time source used for timestamps.
func WithClock(c Clock) RepositoryOption {
	return func(r *Repository) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithIDFunc overrides id allocation.
func WithIDFunc(f IDFunc) RepositoryOption {
	return func(r *Repository) {
		if f != nil {
			r.newID = f
		}
	}
}

// WithRepositoryLogger sets the logger.
func WithRepositoryLogger(l *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReadOnly rejects every mutation with ErrReadOnly.
func WithReadOnly(enabled bool) RepositoryOption {
	return func(r *Repository) {
		r.readOnly = enabled
	}
}

// NewRepository creates a Repository over store.
func NewRepository(store Store, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:  store,
		clock:  SystemClock,
		newID:  NewID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store exposes the underlying store (e.g. to watch it).
func (r *Repository) Store() Store {
	return r.store
}

// Create allocates a new note at version 1, prepends it to the notes
// collection and records its first NoteVersion.
func (r *Repository) Create(ctx context.Context, content, title string, tags []string) (Note, error) {
	now := r.clock()
	note := Note{
		ID:        r.newID(),
		Content:   content,
		Title:     title,
		Tags:      normalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	err := r.mutate(ctx, "create", func(c *collections) (bool, error) {
		c.prependNote(note)
		c.appendVersion(NoteVersion{
			ID:        r.newID(),
			NoteID:    note.ID,
			Content:   content,
			Version:   1,
			CreatedAt: now,
		})
		return true, nil
	})
	if err != nil {
		return Note{}, err
	}

	r.logger.Debug("note created", "id", note.ID)
	return note, nil
}

// Get looks a note up by id. A missing note is (Note{}, false, nil).
func (r *Repository) Get(ctx context.Context, id string) (Note, bool, error) {
	c, err := r.load(ctx)
	if err != nil {
		return Note{}, false, &StoreError{Op: "get", Key: id, Err: err}
	}
	if i := c.indexOf(id); i >= 0 {
		return c.notes[i].Clone(), true, nil
	}
	return Note{}, false, nil
}

// MustGet is Get with a missing note reported as *NotFoundError.
func (r *Repository) MustGet(ctx context.Context, id string) (Note, error) {
	n, ok, err := r.Get(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if !ok {
		return Note{}, &NotFoundError{ID: id}
	}
	return n, nil
}

// List returns every note in stored order (most recently created first).
func (r *Repository) List(ctx context.Context) ([]Note, error) {
	return r.ListRecent(ctx, AllNotes)
}

// ListRecent applies policy to the persisted notes.
func (r *Repository) ListRecent(ctx context.Context, policy ListPolicy) ([]Note, error) {
	c, err := r.load(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	if policy.WindowDays <= 0 {
		out := make([]Note, 0, len(c.notes))
		for _, n := range c.notes {
			out = append(out, n.Clone())
		}
		return out, nil
	}

	cutoff := r.clock().Add(-time.Duration(policy.WindowDays) * 24 * time.Hour)
	out := make([]Note, 0, len(c.notes))
	for _, n := range c.notes {
		if !n.UpdatedAt.Before(cutoff) {
			out = append(out, n.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Upsert replaces the note with the same id, or prepends it when unknown.
// Applying the same note twice leaves the collection unchanged.
func (r *Repository) Upsert(ctx context.Context, note Note) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	note = note.Clone()
	note.Tags = normalizeTags(note.Tags)

	return r.mutate(ctx, "upsert", func(c *collections) (bool, error) {
		if i := c.indexOf(note.ID); i >= 0 {
			if notesEqual(c.notes[i], note) {
				return false, nil
			}
			c.notes[i] = note
		} else {
			c.prependNote(note)
		}
		c.notesDirty = true
		return true, nil
	})
}

// Remove deletes the note. Removing an unknown id is a no-op.
// NoteVersions are kept as orphaned history.
func (r *Repository) Remove(ctx context.Context, id string) error {
	return r.mutate(ctx, "remove", func(c *collections) (bool, error) {
		i := c.indexOf(id)
		if i < 0 {
			return false, nil
		}
		c.notes = slices.Delete(c.notes, i, i+1)
		c.notesDirty = true
		return true, nil
	})
}

// Branch forks a new note from id: same content, title and tags, a new id,
// version = parent.version + 1 and parent_id = id. The parent is untouched.
func (r *Repository) Branch(ctx context.Context, id string) (Note, error) {
	var branched Note
	err := r.mutate(ctx, "branch", func(c *collections) (bool, error) {
		i := c.indexOf(id)
		if i < 0 {
			return false, &NotFoundError{ID: id}
		}
		parent := c.notes[i]
		now := r.clock()
		branched = Note{
			ID:        r.newID(),
			Content:   parent.Content,
			Title:     parent.Title,
			Tags:      slices.Clone(parent.Tags),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   parent.Version + 1,
			ParentID:  parent.ID,
		}
		c.prependNote(branched)
		c.appendVersion(NoteVersion{
			ID:        r.newID(),
			NoteID:    branched.ID,
			Content:   branched.Content,
			Version:   branched.Version,
			CreatedAt: now,
		})
		return true, nil
	})
	if err != nil {
		return Note{}, err
	}

	r.logger.Debug("note branched", "parent", id, "id", branched.ID, "version", branched.Version)
	return branched, nil
}

// Touch bumps updated_at so a resumed note moves into the recent window.
func (r *Repository) Touch(ctx context.Context, id string) (Note, error) {
	var touched Note
	err := r.mutate(ctx, "touch", func(c *collections) (bool, error) {
		i := c.indexOf(id)
		if i < 0 {
			return false, &NotFoundError{ID: id}
		}
		now := r.clock()
		if now.Before(c.notes[i].CreatedAt) {
			now = c.notes[i].CreatedAt
		}
		c.notes[i].UpdatedAt = now
		c.notesDirty = true
		touched = c.notes[i].Clone()
		return true, nil
	})
	return touched, err
}

// History returns every recorded version of id, highest version first.
func (r *Repository) History(ctx context.Context, id string) ([]NoteVersion, error) {
	c, err := r.load(ctx)
	if err != nil {
		return nil, &StoreError{Op: "history", Key: id, Err: err}
	}
	var out []NoteVersion
	for _, v := range c.versions {
		if v.NoteID == id {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Version > out[j].Version
	})
	return out, nil
}

// mutate runs fn over the freshly loaded collections under the writer lock
// and flushes when fn reports a change. Errors returned by fn pass through
// untouched; persistence failures become *StoreError.
func (r *Repository) mutate(ctx context.Context, op string, fn func(c *collections) (bool, error)) error {
	if r.readOnly {
		return &StoreError{Op: op, Err: ErrReadOnly}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.store.(Locker); ok {
		unlock, err := l.Lock(ctx)
		if err != nil {
			return &StoreError{Op: op, Err: fmt.Errorf("acquire lock: %w", err)}
		}
		defer unlock()
	}

	c, err := r.load(ctx)
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}

	changed, err := fn(c)
	if err != nil || !changed {
		return err
	}

	if err := r.commit(ctx, c); err != nil {
		if d, ok := r.store.(Discarder); ok {
			d.Discard()
		}
		r.logger.Error("store write failed", "op", op, "error", err)
		return &StoreError{Op: op, Err: err}
	}

	now := r.clock()
	r.lastSync = &now
	r.writes++
	return nil
}

func (r *Repository) load(ctx context.Context) (*collections, error) {
	c := &collections{}
	if err := r.decode(ctx, KeyNotes, &c.notes); err != nil {
		return nil, err
	}
	if err := r.decode(ctx, KeyVersions, &c.versions); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) decode(ctx context.Context, key string, v any) error {
	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) commit(ctx context.Context, c *collections) error {
	if c.notesDirty {
		if err := r.encode(ctx, KeyNotes, c.notes); err != nil {
			return err
		}
	}
	if c.versionsDirty {
		if err := r.encode(ctx, KeyVersions, c.versions); err != nil {
			return err
		}
	}
	if err := r.store.Save(ctx); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func (r *Repository) encode(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// collections is one loaded copy of the persisted state.
type collections struct {
	notes         []Note
	versions      []NoteVersion
	notesDirty    bool
	versionsDirty bool
}

func (c *collections) indexOf(id string) int {
	return slices.IndexFunc(c.notes, func(n Note) bool { return n.ID == id })
}

func (c *collections) prependNote(n Note) {
	c.notes = append([]Note{n}, c.notes...)
	c.notesDirty = true
}

func (c *collections) appendVersion(v NoteVersion) {
	c.versions = append(c.versions, v)
	c.versionsDirty = true
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func notesEqual(a, b Note) bool {
	return a.ID == b.ID &&
		a.Content == b.Content &&
		a.Title == b.Title &&
		slices.Equal(a.Tags, b.Tags) &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.Version == b.Version &&
		a.ParentID == b.ParentID &&
		a.Favorite == b.Favorite &&
		a.Pinned == b.Pinned
}

// IsNotFound reports whether err is a missing-note result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
