// Package windows implements the Editor Window Manager: it opens or
// focuses one secondary editor window per note, labelled deterministically
// from the note id so that re-opening a note never duplicates its window.
package windows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/notecap/pkg/core"
)

// EditorLabelPrefix starts every editor window label.
const EditorLabelPrefix = "note-editor-"

// EditorPattern matches every editor window label.
const EditorPattern = EditorLabelPrefix + "*"

// Editor window geometry.
const (
	EditorWidth  = 600
	EditorHeight = 500
)

// EditorLabel is the window label of note id. Characters a windowing
// subsystem may reject are replaced with '_'.
func EditorLabel(id string) string {
	var b strings.Builder
	b.Grow(len(EditorLabelPrefix) + len(id))
	b.WriteString(EditorLabelPrefix)
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// EditorView is the view an editor window loads. It carries the note id
// only; the window re-fetches the body itself.
func EditorView(id string) string {
	return "editor?noteId=" + url.QueryEscape(id)
}

// NoteFromView extracts the note id from an editor view.
func NoteFromView(view string) (string, bool) {
	u, err := url.Parse(view)
	if err != nil || u.Path != "editor" {
		return "", false
	}
	id := u.Query().Get("noteId")
	return id, id != ""
}

// Opened describes the outcome of OpenForEdit.
type Opened struct {
	Label   string
	Created bool
	Note    core.Note
}

// Manager is the Editor Window Manager.
type Manager struct {
	system core.WindowSystem
	repo   *core.Repository
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager driving system, resolving notes through repo.
func NewManager(system core.WindowSystem, repo *core.Repository, opts ...Option) *Manager {
	m := &Manager{
		system: system,
		repo:   repo,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenForEdit focuses the editor window of note when it is already open.
// Otherwise it makes sure the note is persisted (preferring the stored copy
// over the caller's), creates the window and focuses it once created.
func (m *Manager) OpenForEdit(ctx context.Context, note core.Note) (Opened, error) {
	if note.ID == "" {
		return Opened{}, &core.WindowError{Err: fmt.Errorf("note has no id")}
	}
	label := EditorLabel(note.ID)

	labels, err := m.system.Labels(ctx)
	if err != nil {
		return Opened{}, &core.WindowError{Label: label, Err: fmt.Errorf("enumerate windows: %w", err)}
	}
	if slices.Contains(labels, label) {
		return m.focusExisting(ctx, label, note)
	}

	resolved, err := m.resolve(ctx, note)
	if err != nil {
		return Opened{}, &core.WindowError{Label: label, Err: err}
	}

	unsubCreated := m.system.Once(label, core.WindowCreated, func() {
		if err := m.system.Focus(context.Background(), label); err != nil {
			m.logger.Warn("failed to focus new editor window", "label", label, "error", err)
		}
	})
	unsubDestroyed := m.system.Once(label, core.WindowDestroyed, func() {
		m.logger.Debug("editor window closed", "label", label)
	})

	spec := core.WindowSpec{
		Label:       label,
		View:        EditorView(note.ID),
		Title:       "Edit: " + resolved.Title,
		Width:       EditorWidth,
		Height:      EditorHeight,
		Center:      true,
		AlwaysOnTop: true,
	}
	if err := m.system.Create(ctx, spec); err != nil {
		unsubCreated()
		unsubDestroyed()
		if errors.Is(err, ErrWindowExists) {
			// Another opener won the race for this label.
			return m.focusExisting(ctx, label, resolved)
		}
		return Opened{}, &core.WindowError{Label: label, Err: fmt.Errorf("create: %w", err)}
	}

	m.logger.Debug("editor window created", "label", label, "note", note.ID)
	return Opened{Label: label, Created: true, Note: resolved}, nil
}

func (m *Manager) focusExisting(ctx context.Context, label string, note core.Note) (Opened, error) {
	if err := m.system.Focus(ctx, label); err != nil {
		return Opened{}, &core.WindowError{Label: label, Err: fmt.Errorf("focus: %w", err)}
	}
	m.logger.Debug("editor window focused", "label", label)
	return Opened{Label: label, Note: note}, nil
}

func (m *Manager) resolve(ctx context.Context, note core.Note) (core.Note, error) {
	if m.repo == nil {
		return note, nil
	}
	stored, ok, err := m.repo.Get(ctx, note.ID)
	if err != nil {
		return core.Note{}, err
	}
	if ok {
		return stored, nil
	}
	if err := m.repo.Upsert(ctx, note); err != nil {
		return core.Note{}, fmt.Errorf("persist caller copy: %w", err)
	}
	return note, nil
}

// Windows lists live window labels matching pattern (doublestar syntax).
// An empty pattern matches every window.
func (m *Manager) Windows(ctx context.Context, pattern string) ([]string, error) {
	labels, err := m.system.Labels(ctx)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return labels, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid window pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if ok, _ := doublestar.Match(pattern, l); ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// Close destroys the editor window of note id, if open.
func (m *Manager) Close(ctx context.Context, id string) error {
	label := EditorLabel(id)
	labels, err := m.system.Labels(ctx)
	if err != nil {
		return &core.WindowError{Label: label, Err: err}
	}
	if !slices.Contains(labels, label) {
		return nil
	}
	if err := m.system.Close(ctx, label); err != nil {
		return &core.WindowError{Label: label, Err: err}
	}
	return nil
}
