package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notecap/pkg/adapters/memory"
	"github.com/aretw0/notecap/pkg/core"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func seqIDs() core.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newRepo(t *testing.T) (*core.Repository, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := core.NewRepository(store, core.WithClock(clock.Now), core.WithIDFunc(seqIDs()))
	return repo, store, clock
}

func TestRepository_Create(t *testing.T) {
	repo, store, clock := newRepo(t)
	ctx := context.Background()

	n, err := repo.Create(ctx, "hello", "Hello", []string{"text"})
	require.NoError(t, err)

	assert.Equal(t, 1, n.Version)
	assert.Empty(t, n.ParentID)
	assert.Equal(t, clock.now, n.CreatedAt)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
	assert.Equal(t, 1, store.Saves(), "create must flush")

	got, ok, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)

	hist, err := repo.History(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 1, hist[0].Version)
	assert.Equal(t, "hello", hist[0].Content)
}

func TestRepository_CreatePrependsForRecency(t *testing.T) {
	repo, _, clock := newRepo(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, "a", "", nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	b, err := repo.Create(ctx, "b", "", nil)
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)
}

func TestRepository_CreateFailureLeavesNoState(t *testing.T) {
	repo, store, _ := newRepo(t)
	ctx := context.Background()

	store.FailSave = errors.New("disk full")
	_, err := repo.Create(ctx, "lost?", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreWrite)

	store.FailSave = nil
	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "staged values must be discarded on failure")
}

func TestRepository_GetMissingIsNotAnError(t *testing.T) {
	repo, _, _ := newRepo(t)

	_, ok, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.MustGet(context.Background(), "nope")
	assert.True(t, core.IsNotFound(err))
}

func TestRepository_ListRecent(t *testing.T) {
	repo, _, clock := newRepo(t)
	ctx := context.Background()

	old, err := repo.Create(ctx, "old", "", nil)
	require.NoError(t, err)
	clock.Advance(4 * 24 * time.Hour)
	mid, err := repo.Create(ctx, "mid", "", nil)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	fresh, err := repo.Create(ctx, "fresh", "", nil)
	require.NoError(t, err)

	recent, err := repo.ListRecent(ctx, core.DefaultListPolicy)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, fresh.ID, recent[0].ID)
	assert.Equal(t, mid.ID, recent[1].ID)

	all, err := repo.ListRecent(ctx, core.AllNotes)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, old.ID, all[2].ID)
}

func TestRepository_UpsertIdempotent(t *testing.T) {
	repo, store, _ := newRepo(t)
	ctx := context.Background()

	n, err := repo.Create(ctx, "x", "X", nil)
	require.NoError(t, err)

	n.Favorite = true
	require.NoError(t, repo.Upsert(ctx, n))
	first := store.Raw(core.KeyNotes)
	saves := store.Saves()

	require.NoError(t, repo.Upsert(ctx, n))
	assert.JSONEq(t, string(first), string(store.Raw(core.KeyNotes)))
	assert.Equal(t, saves, store.Saves(), "identical upsert writes nothing")

	var notes []core.Note
	require.NoError(t, json.Unmarshal(store.Raw(core.KeyNotes), &notes))
	assert.Len(t, notes, 1)
	assert.True(t, notes[0].Favorite)
}

func TestRepository_UpsertUnknownInserts(t *testing.T) {
	repo, _, clock := newRepo(t)
	ctx := context.Background()

	remote := core.Note{ID: "remote", Content: "from elsewhere", CreatedAt: clock.now, UpdatedAt: clock.now, Version: 1}
	require.NoError(t, repo.Upsert(ctx, remote))

	got, ok, err := repo.Get(ctx, "remote")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from elsewhere", got.Content)
	assert.NotNil(t, got.Tags)
}

func TestRepository_UpsertRejectsInvalid(t *testing.T) {
	repo, _, clock := newRepo(t)
	bad := core.Note{ID: "bad", CreatedAt: clock.now, UpdatedAt: clock.now.Add(-time.Hour), Version: 1}
	assert.Error(t, repo.Upsert(context.Background(), bad))
}

func TestRepository_RemoveIdempotent(t *testing.T) {
	repo, store, _ := newRepo(t)
	ctx := context.Background()

	n, err := repo.Create(ctx, "bye", "", nil)
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, n.ID))
	require.NoError(t, repo.Remove(ctx, n.ID))
	require.NoError(t, repo.Remove(ctx, "never-existed"))
	assert.Equal(t, 2, store.Saves())

	_, ok, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	hist, err := repo.History(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1, "versions survive deletion")
}

func TestRepository_Branch(t *testing.T) {
	repo, _, clock := newRepo(t)
	ctx := context.Background()

	parent, err := repo.Create(ctx, "root", "Root", []string{"a", "b"})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	child, err := repo.Branch(ctx, parent.ID)
	require.NoError(t, err)
	assert.NotEqual(t, parent.ID, child.ID)
	assert.Equal(t, parent.Version+1, child.Version)
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, parent.Content, child.Content)
	assert.Equal(t, parent.Title, child.Title)
	assert.ElementsMatch(t, parent.Tags, child.Tags)
	assert.Equal(t, clock.now, child.CreatedAt)

	stored, err := repo.MustGet(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, parent, stored, "branch leaves the parent untouched")

	hist, err := repo.History(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 2, hist[0].Version)

	grandchild, err := repo.Branch(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, grandchild.Version)
}

func TestRepository_BranchMissing(t *testing.T) {
	repo, store, _ := newRepo(t)
	_, err := repo.Branch(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, store.Saves())
}

func TestRepository_HistoryOrdering(t *testing.T) {
	store := memory.NewStore()
	repo := core.NewRepository(store)
	ctx := context.Background()

	versions := []core.NoteVersion{
		{ID: "v1", NoteID: "n", Version: 1},
		{ID: "v3", NoteID: "n", Version: 3},
		{ID: "x", NoteID: "other", Version: 9},
		{ID: "v2", NoteID: "n", Version: 2},
	}
	data, err := json.Marshal(versions)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, core.KeyVersions, data))
	require.NoError(t, store.Save(ctx))

	hist, err := repo.History(ctx, "n")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{hist[0].Version, hist[1].Version, hist[2].Version})
}

func TestRepository_Touch(t *testing.T) {
	repo, _, clock := newRepo(t)
	ctx := context.Background()

	n, err := repo.Create(ctx, "t", "", nil)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	touched, err := repo.Touch(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.now, touched.UpdatedAt)
	assert.Equal(t, n.CreatedAt, touched.CreatedAt)
	assert.Equal(t, n.Version, touched.Version)

	_, err = repo.Touch(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_ReadOnly(t *testing.T) {
	repo := core.NewRepository(memory.NewStore(), core.WithReadOnly(true))
	_, err := repo.Create(context.Background(), "x", "", nil)
	assert.ErrorIs(t, err, core.ErrReadOnly)
	assert.ErrorIs(t, err, core.ErrStoreWrite)
}

func TestRepository_CorruptCollection(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, core.KeyNotes, []byte("{not json")))
	require.NoError(t, store.Save(ctx))

	repo := core.NewRepository(store)
	_, err := repo.List(ctx)
	assert.ErrorIs(t, err, core.ErrStoreWrite)
}
