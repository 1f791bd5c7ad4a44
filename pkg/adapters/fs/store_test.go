package fs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notecap/pkg/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(Config{Path: t.TempDir(), LockTimeout: 2 * time.Second})
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func TestStore_SetSaveGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, core.KeyNotes)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, core.KeyNotes, []byte(`[{"id":"a"}]`)))

	// Staged values are visible before the flush.
	v, ok, err := s.Get(ctx, core.KeyNotes)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"a"}]`, string(v))

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "nothing on disk before Save")

	require.NoError(t, s.Save(ctx))

	other := NewStore(Config{Path: filepath.Dir(s.Path())})
	v, ok, err = other.Get(ctx, core.KeyNotes)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"a"}]`, string(v))
}

func TestStore_SaveMergesUnstagedKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, core.KeyNotes, []byte(`[]`)))
	require.NoError(t, s.Set(ctx, core.KeyVersions, []byte(`[{"id":"v1"}]`)))
	require.NoError(t, s.Save(ctx))

	require.NoError(t, s.Set(ctx, core.KeyNotes, []byte(`[{"id":"n1"}]`)))
	require.NoError(t, s.Save(ctx))

	v, _, err := s.Get(ctx, core.KeyVersions)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"v1"}]`, string(v))
}

func TestStore_SetRejectsInvalidJSON(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Set(context.Background(), core.KeyNotes, []byte("{nope")))
}

func TestStore_Discard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, core.KeyNotes, []byte(`[]`)))
	s.Discard()
	_, ok, err := s.Get(ctx, core.KeyNotes)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(Config{Path: dir, ReadOnly: true})
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, s.Set(context.Background(), core.KeyNotes, []byte(`[]`)))
	assert.ErrorIs(t, s.Save(context.Background()), core.ErrReadOnly)
	_, err := s.Lock(context.Background())
	assert.ErrorIs(t, err, core.ErrReadOnly)
}

func TestStore_MustExist(t *testing.T) {
	s := NewStore(Config{Path: filepath.Join(t.TempDir(), "missing"), MustExist: true})
	assert.Error(t, s.Initialize(context.Background()))
}

func TestStore_LockSerializesWriters(t *testing.T) {
	dir := t.TempDir()
	a := NewStore(Config{Path: dir, LockTimeout: 5 * time.Second})
	b := NewStore(Config{Path: dir, LockTimeout: 5 * time.Second})
	require.NoError(t, a.Initialize(context.Background()))

	var (
		mu     sync.Mutex
		inside int
		maxIn  int
		wg     sync.WaitGroup
	)
	for _, s := range []*Store{a, b, a, b} {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			unlock, err := s.Lock(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxIn {
				maxIn = inside
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}(s)
	}
	wg.Wait()
	assert.Equal(t, 1, maxIn)
}

func TestStore_LockRespectsContext(t *testing.T) {
	s := newTestStore(t)
	unlock, err := s.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.Lock(ctx)
	assert.Error(t, err)
}

func TestStore_WatchReportsExternalWrites(t *testing.T) {
	dir := t.TempDir()
	watched := NewStore(Config{Path: dir})
	require.NoError(t, watched.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := watched.Watch(ctx)
	require.NoError(t, err)

	writer := NewStore(Config{Path: dir})
	require.NoError(t, writer.Set(ctx, core.KeyNotes, []byte(`[]`)))
	require.NoError(t, writer.Save(ctx))

	select {
	case ev := <-events:
		assert.Equal(t, filepath.Clean(watched.Path()), ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("no store event received")
	}
}
