package session

import (
	"slices"

	"github.com/aretw0/notecap/pkg/core"
)

// noteList is the visible list of one window: insertion-ordered and keyed
// by note id, so every update addresses a note by id and never by position.
type noteList struct {
	order []string
	byID  map[string]core.Note
}

func newNoteList() *noteList {
	return &noteList{byID: make(map[string]core.Note)}
}

// upsert replaces the note with the same id in place, or appends it.
// It reports whether the note was new.
func (l *noteList) upsert(n core.Note) bool {
	_, exists := l.byID[n.ID]
	l.byID[n.ID] = n.Clone()
	if !exists {
		l.order = append(l.order, n.ID)
	}
	return !exists
}

func (l *noteList) get(id string) (core.Note, bool) {
	n, ok := l.byID[id]
	if !ok {
		return core.Note{}, false
	}
	return n.Clone(), true
}

func (l *noteList) has(id string) bool {
	_, ok := l.byID[id]
	return ok
}

func (l *noteList) remove(id string) bool {
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	if i := slices.Index(l.order, id); i >= 0 {
		l.order = slices.Delete(l.order, i, i+1)
	}
	return true
}

func (l *noteList) len() int {
	return len(l.order)
}

// notes returns copies in insertion order.
func (l *noteList) notes() []core.Note {
	out := make([]core.Note, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id].Clone())
	}
	return out
}

// display returns pinned notes first, keeping received order otherwise.
func (l *noteList) display() []core.Note {
	out := l.notes()
	slices.SortStableFunc(out, func(a, b core.Note) int {
		switch {
		case a.Pinned == b.Pinned:
			return 0
		case a.Pinned:
			return -1
		default:
			return 1
		}
	})
	return out
}
