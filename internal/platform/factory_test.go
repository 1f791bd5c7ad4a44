package platform

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notecap/pkg/adapters/memory"
	"github.com/aretw0/notecap/pkg/bus"
	"github.com/aretw0/notecap/pkg/core"
)

func submit(t *testing.T, app *App, text string) core.Note {
	t.Helper()
	app.Session.Edit(text)
	n, err := app.Session.Submit(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	return n
}

func TestNew_MemoryAdapter(t *testing.T) {
	app, err := New("", WithAdapter("memory"))
	require.NoError(t, err)
	defer app.Close()
	require.NoError(t, app.Start(context.Background()))

	assert.Equal(t, "memory", app.Path)
	assert.Equal(t, DefaultLabel, app.Bus.Label())

	n := submit(t, app, "# Groceries\nmilk #shopping")
	app.Session.Wait()

	got, ok := app.Session.Note(n.ID)
	require.True(t, ok)
	assert.Equal(t, "Groceries", got.Title)
	assert.Contains(t, got.Tags, "shopping")

	state, ok := app.State().(AppState)
	require.True(t, ok)
	assert.Equal(t, "memory", state.Path)
	assert.Equal(t, "notecap-app", app.ComponentType())
}

func TestNew_UnknownAdapter(t *testing.T) {
	_, err := New(t.TempDir(), WithAdapter("s3"))
	assert.ErrorContains(t, err, "unknown adapter")
}

func TestNew_SharedHubConverges(t *testing.T) {
	hub := bus.NewHub()
	store := memory.NewStore()

	main, err := New("", WithStore(store), WithBus(hub.Endpoint("main")))
	require.NoError(t, err)
	defer main.Close()
	other, err := New("", WithStore(store), WithBus(hub.Endpoint("other")))
	require.NoError(t, err)
	defer other.Close()

	ctx := context.Background()
	require.NoError(t, main.Start(ctx))
	require.NoError(t, other.Start(ctx))

	n := submit(t, main, "shared thought")
	assert.Eventually(t, func() bool {
		_, ok := other.Session.Note(n.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNew_FSAdapterPersists(t *testing.T) {
	dir := t.TempDir()

	app, err := New(dir, WithSystemDir(".notecap"))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	n := submit(t, app, "kept on disk")
	require.NoError(t, app.Close())
	assert.NoError(t, app.Close(), "second close is a no-op")

	assert.FileExists(t, filepath.Join(dir, "notes.json"))
	assert.DirExists(t, filepath.Join(dir, ".notecap"))

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Start(context.Background()))
	_, ok := reopened.Session.Note(n.ID)
	assert.True(t, ok)
}

func TestNew_BoltAdapterPersists(t *testing.T) {
	dir := t.TempDir()

	app, err := New(dir, WithAdapter("bolt"), WithLockTimeout(time.Second))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	n := submit(t, app, "kept in bolt")
	require.NoError(t, app.Close())

	assert.FileExists(t, filepath.Join(dir, DefaultBoltFile))

	reopened, err := New(dir, WithAdapter("bolt"), WithLockTimeout(time.Second))
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Start(context.Background()))
	_, ok := reopened.Session.Note(n.ID)
	assert.True(t, ok)
}

func TestNew_SpoolAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	spool := filepath.Join(dir, "spool")

	main, err := New(dir, WithSpool(spool), WithLabel("main"))
	require.NoError(t, err)
	defer main.Close()
	editor, err := New(dir, WithSpool(spool), WithLabel("note-editor-x"))
	require.NoError(t, err)
	defer editor.Close()

	ctx := context.Background()
	require.NoError(t, main.Start(ctx))
	require.NoError(t, editor.Start(ctx))

	n := submit(t, editor, "from the editor")
	assert.Eventually(t, func() bool {
		_, ok := main.Session.Note(n.ID)
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestNew_ReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()

	app, err := New(dir, WithReadOnly(true))
	require.NoError(t, err)
	defer app.Close()
	require.NoError(t, app.Start(context.Background()))

	app.Session.Edit("nope")
	_, err = app.Session.Submit(context.Background())
	assert.ErrorIs(t, err, core.ErrReadOnly)
}

func TestOpenStore_MustExist(t *testing.T) {
	_, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "missing"), WithMustExist(true))
	assert.Error(t, err)
}
