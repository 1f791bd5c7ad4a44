// Package core holds the note domain, the ports the rest of the module
// plugs into, and the Note Repository that mediates every store access.
package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Note is the central entity of the domain.
// A note is addressed by its ID everywhere; positions in a list carry no meaning.
type Note struct {
	ID        string    `json:"id" yaml:"id"`
	Content   string    `json:"content" yaml:"content"`
	Title     string    `json:"title" yaml:"title"`
	Tags      []string  `json:"tags" yaml:"tags"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Version   int       `json:"version" yaml:"version"`
	ParentID  string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Favorite  bool      `json:"favorite,omitempty" yaml:"favorite,omitempty"`
	Pinned    bool      `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// Clone returns a copy that shares no slices with n.
func (n Note) Clone() Note {
	c := n
	if n.Tags != nil {
		c.Tags = slices.Clone(n.Tags)
	}
	return c
}

// HasTag reports whether the note carries tag.
func (n Note) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// Validate checks the invariants a persisted note must hold.
func (n Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("note has no ID")
	}
	if n.Version < 1 {
		return fmt.Errorf("note %s: version %d < 1", n.ID, n.Version)
	}
	if n.UpdatedAt.Before(n.CreatedAt) {
		return fmt.Errorf("note %s: updated_at before created_at", n.ID)
	}
	return nil
}

// NoteVersion is an append-only snapshot of a note's content at a version.
type NoteVersion struct {
	ID        string    `json:"id" yaml:"id"`
	NoteID    string    `json:"note_id" yaml:"note_id"`
	Content   string    `json:"content" yaml:"content"`
	Version   int       `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Suggestion is what a Generator returns for a piece of note content.
type Suggestion struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// ListPolicy selects which notes a listing returns.
// WindowDays > 0 keeps notes updated within the trailing window, newest first.
// WindowDays == 0 keeps every note in stored order.
type ListPolicy struct {
	WindowDays int `json:"window_days" yaml:"window_days"`
}

// DefaultRecentWindow is the trailing window of the main recent list.
const DefaultRecentWindow = 3

var (
	// DefaultListPolicy is the 3-day recent list.
	DefaultListPolicy = ListPolicy{WindowDays: DefaultRecentWindow}
	// AllNotes keeps every note with no time filter.
	AllNotes = ListPolicy{}
)

// String describes the policy for logs and CLI output.
func (p ListPolicy) String() string {
	if p.WindowDays <= 0 {
		return "all notes"
	}
	return fmt.Sprintf("last %d days", p.WindowDays)
}

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the default Clock, in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// IDFunc allocates a new globally unique identifier.
type IDFunc func() string

// NewID is the default IDFunc (random UUID).
func NewID() string {
	return uuid.NewString()
}
