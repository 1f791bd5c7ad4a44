package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/notecap/pkg/core"
)

func noteAt(created time.Time, length int) core.Note {
	return core.Note{ID: created.String(), Content: strings.Repeat("x", length), CreatedAt: created, UpdatedAt: created, Version: 1}
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	notes := []core.Note{
		noteAt(now.Add(-time.Hour), 1),
		noteAt(now.Add(-2*time.Hour), 2),
		noteAt(now.Add(-day), 3),
		noteAt(now.Add(-2*day), 4),
		noteAt(now.Add(-5*day), 5),
		noteAt(now.Add(-10*day), 6),
	}
	notes[0].Favorite = true
	notes[1].Pinned = true

	s := ComputeStats(notes, now)
	assert.Equal(t, Stats{
		Total:     6,
		Today:     2,
		Favorites: 1,
		Pinned:    1,
		Week:      5,
		AvgLength: 4,
		Streak:    3,
	}, s)
}

func TestComputeStats_StreakStartsAtMostRecentDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	notes := []core.Note{
		noteAt(now.Add(-2*day), 1),
		noteAt(now.Add(-3*day), 1),
		noteAt(now.Add(-5*day), 1),
	}
	assert.Equal(t, 2, ComputeStats(notes, now).Streak)
	assert.Zero(t, ComputeStats([]core.Note{noteAt(now.Add(-40*day), 1)}, now).Streak)
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil, time.Now()))
}

func TestNoteList(t *testing.T) {
	l := newNoteList()
	assert.True(t, l.upsert(core.Note{ID: "a", Title: "1"}))
	assert.True(t, l.upsert(core.Note{ID: "b"}))
	assert.False(t, l.upsert(core.Note{ID: "a", Title: "2"}))

	notes := l.notes()
	assert.Equal(t, "a", notes[0].ID)
	assert.Equal(t, "2", notes[0].Title)
	assert.Equal(t, 2, l.len())

	assert.True(t, l.remove("a"))
	assert.False(t, l.remove("a"))
	assert.False(t, l.has("a"))
	assert.Equal(t, 1, l.len())
}
