package windows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notecap/pkg/adapters/memory"
	"github.com/aretw0/notecap/pkg/bus"
	"github.com/aretw0/notecap/pkg/core"
)

func newRepo(t *testing.T) *core.Repository {
	t.Helper()
	return core.NewRepository(memory.NewStore())
}

func TestEditorLabel(t *testing.T) {
	assert.Equal(t, "note-editor-abc-123_x", EditorLabel("abc-123_x"))
	assert.Equal(t, "note-editor-a_b_c", EditorLabel("a/b.c"))
	assert.Equal(t, EditorLabel("same"), EditorLabel("same"))
	assert.Equal(t, "editor?noteId=abc", EditorView("abc"))
}

func TestNoteFromView(t *testing.T) {
	id, ok := NoteFromView(EditorView("a/b c"))
	require.True(t, ok)
	assert.Equal(t, "a/b c", id)

	_, ok = NoteFromView("main")
	assert.False(t, ok)
	_, ok = NoteFromView("editor?noteId=")
	assert.False(t, ok)
}

func TestManager_OpenTwiceFocusesExisting(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	note, err := repo.Create(ctx, "body", "Title", nil)
	require.NoError(t, err)

	reg := NewRegistry()
	m := NewManager(reg, repo)

	first, err := m.OpenForEdit(ctx, note)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, first.Label, reg.Focused(), "created window is focused")

	// Another window steals focus in between.
	require.NoError(t, reg.Create(ctx, core.WindowSpec{Label: "main"}))
	require.NoError(t, reg.Focus(ctx, "main"))

	second, err := m.OpenForEdit(ctx, note)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Label, second.Label)

	labels, err := m.Windows(ctx, EditorPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{EditorLabel(note.ID)}, labels)
	assert.Equal(t, first.Label, reg.Focused())
}

func TestManager_WindowSpecCarriesIDOnly(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	note, err := repo.Create(ctx, "secret body", "Stored", nil)
	require.NoError(t, err)

	reg := NewRegistry()
	stale := note
	stale.Title = "Stale"
	opened, err := NewManager(reg, repo).OpenForEdit(ctx, stale)
	require.NoError(t, err)

	spec, ok := reg.Spec(opened.Label)
	require.True(t, ok)
	assert.Equal(t, "editor?noteId="+note.ID, spec.View)
	assert.Equal(t, "Edit: Stored", spec.Title, "persisted copy wins over caller copy")
	assert.NotContains(t, spec.View, "secret")
	assert.Equal(t, EditorWidth, spec.Width)
	assert.Equal(t, EditorHeight, spec.Height)
	assert.True(t, spec.Center)
	assert.True(t, spec.AlwaysOnTop)
}

func TestManager_PersistsUnknownNoteBeforeOpening(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Now().UTC()
	note := core.Note{ID: "visible-only", Content: "draft", Title: "Draft", CreatedAt: now, UpdatedAt: now, Version: 1}

	_, err := NewManager(NewRegistry(), repo).OpenForEdit(ctx, note)
	require.NoError(t, err)

	stored, ok, err := repo.Get(ctx, note.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "draft", stored.Content)
}

type failingSystem struct {
	*Registry
}

func (failingSystem) Create(context.Context, core.WindowSpec) error {
	return errors.New("no display")
}

func TestManager_CreateFailureIsReported(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	note, err := repo.Create(ctx, "x", "x", nil)
	require.NoError(t, err)

	_, err = NewManager(failingSystem{NewRegistry()}, repo).OpenForEdit(ctx, note)
	assert.ErrorIs(t, err, core.ErrWindowOpen)

	var werr *core.WindowError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, EditorLabel(note.ID), werr.Label)
}

func TestManager_Windows(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	for _, l := range []string{"main", "note-editor-a", "note-editor-b"} {
		require.NoError(t, reg.Create(ctx, core.WindowSpec{Label: l}))
	}
	m := NewManager(reg, nil)

	all, err := m.Windows(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	editors, err := m.Windows(ctx, EditorPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{"note-editor-a", "note-editor-b"}, editors)

	_, err = m.Windows(ctx, "[")
	assert.Error(t, err)
}

func TestManager_Close(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	m := NewManager(reg, nil)
	now := time.Now().UTC()
	note := core.Note{ID: "n", Title: "t", CreatedAt: now, UpdatedAt: now, Version: 1}

	_, err := m.OpenForEdit(ctx, note)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, "n"))
	require.NoError(t, m.Close(ctx, "n"))

	labels, err := reg.Labels(ctx)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestRegistry_HooksFireOnce(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	var created, destroyed int
	reg.Once("w", core.WindowCreated, func() { created++ })
	unsub := reg.Once("w", core.WindowDestroyed, func() { destroyed++ })
	unsub()

	require.NoError(t, reg.Create(ctx, core.WindowSpec{Label: "w"}))
	require.NoError(t, reg.Close(ctx, "w"))
	require.NoError(t, reg.Create(ctx, core.WindowSpec{Label: "w"}))

	assert.Equal(t, 1, created)
	assert.Zero(t, destroyed)
	assert.Error(t, reg.Create(ctx, core.WindowSpec{Label: "w"}))
	assert.Error(t, reg.Focus(ctx, "missing"))
}

func TestProcessSystem_LabelFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	hub := bus.NewHub()
	opener := hub.Endpoint("main")
	defer opener.Close()

	ps, err := NewProcessSystem(ctx, ProcessConfig{Dir: dir, Command: "notecap-test-unused", Bus: opener})
	require.NoError(t, err)
	defer ps.Stop()

	var mu sync.Mutex
	var events []core.WindowEventKind
	record := func(k core.WindowEventKind) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, k)
		}
	}
	ps.Once("note-editor-x", core.WindowCreated, record(core.WindowCreated))
	ps.Once("note-editor-x", core.WindowDestroyed, record(core.WindowDestroyed))

	release, err := Announce(dir, "note-editor-x")
	require.NoError(t, err)

	labels, err := ps.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"note-editor-x"}, labels)

	window := hub.Endpoint("note-editor-x")
	defer window.Close()
	focused := make(chan struct{}, 1)
	_, err = window.Listen(bus.EventFocusWindow, func(core.Message) { focused <- struct{}{} })
	require.NoError(t, err)
	require.NoError(t, ps.Focus(ctx, "note-editor-x"))
	select {
	case <-focused:
	case <-time.After(2 * time.Second):
		t.Fatal("focus request not delivered")
	}

	release()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []core.WindowEventKind{core.WindowCreated, core.WindowDestroyed}, events)
	mu.Unlock()

	assert.Error(t, ps.Focus(ctx, "note-editor-x"))
	assert.Error(t, ps.Close(ctx, "note-editor-x"))
}

func TestProcessSystem_CreateFailure(t *testing.T) {
	ps, err := NewProcessSystem(context.Background(), ProcessConfig{Dir: t.TempDir(), Command: "/nonexistent/notecap"})
	require.NoError(t, err)
	defer ps.Stop()

	err = ps.Create(context.Background(), core.WindowSpec{Label: "note-editor-x"})
	assert.Error(t, err)
}

// shellWindow starts /bin/sh as a window process that records its start in
// dir/spawned, announces itself like the editor command does and exits
// after lifetime.
func shellWindow(t *testing.T, dir string, lifetime string) ProcessConfig {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("window processes are driven through /bin/sh")
	}
	script := `echo x >> "$1/spawned"; sleep 0.2; ` +
		`printf %s $$ > "$1/.tmp-$2" && mv "$1/.tmp-$2" "$1/$2.window"; sleep ` + lifetime
	return ProcessConfig{
		Dir:     dir,
		Command: "/bin/sh",
		Args: func(spec core.WindowSpec) []string {
			return []string{"-c", script, "sh", dir, spec.Label}
		},
	}
}

func spawnCount(t *testing.T, dir string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "spawned"))
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "x")
}

func TestProcessSystem_OpenTwiceSpawnsOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	hub := bus.NewHub()
	opener := hub.Endpoint("main")
	defer opener.Close()

	cfg := shellWindow(t, dir, "0.5")
	cfg.Bus = opener
	ps, err := NewProcessSystem(ctx, cfg)
	require.NoError(t, err)
	defer ps.Stop()

	repo := newRepo(t)
	note, err := repo.Create(ctx, "body", "Title", nil)
	require.NoError(t, err)
	m := NewManager(ps, repo)

	created := make(chan struct{})
	ps.Once(EditorLabel(note.ID), core.WindowCreated, func() { close(created) })

	first, err := m.OpenForEdit(ctx, note)
	require.NoError(t, err)
	assert.True(t, first.Created)

	// The child has not announced yet; the label is only claimed.
	second, err := m.OpenForEdit(ctx, note)
	require.NoError(t, err)
	assert.False(t, second.Created)

	err = ps.Create(ctx, core.WindowSpec{Label: first.Label})
	assert.ErrorIs(t, err, ErrWindowExists)

	select {
	case <-created:
	case <-time.After(5 * time.Second):
		t.Fatal("window never announced itself")
	}
	assert.Equal(t, 1, spawnCount(t, dir))

	// The reaper frees the label once the child exits.
	require.Eventually(t, func() bool {
		labels, err := ps.Labels(ctx)
		return err == nil && len(labels) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestProcessSystem_CreateRaceSpawnsOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ps, err := NewProcessSystem(ctx, shellWindow(t, dir, "0.3"))
	require.NoError(t, err)
	defer ps.Stop()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = ps.Create(ctx, core.WindowSpec{Label: "note-editor-x"})
		}()
	}
	wg.Wait()

	var started int
	for _, err := range errs {
		if err == nil {
			started++
			continue
		}
		assert.ErrorIs(t, err, ErrWindowExists)
	}
	assert.Equal(t, 1, started)

	require.Eventually(t, func() bool {
		labels, err := ps.Labels(ctx)
		return err == nil && len(labels) == 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, spawnCount(t, dir))
}

func TestProcessSystem_FailedStartReleasesClaim(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ps, err := NewProcessSystem(ctx, ProcessConfig{Dir: dir, Command: "/nonexistent/notecap"})
	require.NoError(t, err)
	defer ps.Stop()

	require.Error(t, ps.Create(ctx, core.WindowSpec{Label: "note-editor-x"}))
	labels, err := ps.Labels(ctx)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestAnnounce_RejectsLiveHolder(t *testing.T) {
	dir := t.TempDir()
	withdraw, err := Announce(dir, "note-editor-x")
	require.NoError(t, err)
	defer withdraw()

	_, err = Announce(dir, "note-editor-x")
	assert.ErrorIs(t, err, ErrWindowExists)

	data, err := os.ReadFile(filepath.Join(dir, "note-editor-x"+labelExt))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAnnounce_TakesOverStaleAndPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note-editor-x"+labelExt)

	for _, holder := range []string{"2147483646", pendingPrefix + strconv.Itoa(os.Getpid()), "garbage"} {
		require.NoError(t, os.WriteFile(path, []byte(holder), 0644))

		withdraw, err := Announce(dir, "note-editor-x")
		require.NoError(t, err, holder)
		pid, pending, err := readHolder(path)
		require.NoError(t, err)
		assert.False(t, pending)
		assert.Equal(t, os.Getpid(), pid)

		withdraw()
		assert.NoFileExists(t, path)
	}
}

func TestAnnounce_WithdrawKeepsNewerHolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note-editor-x"+labelExt)

	withdraw, err := Announce(dir, "note-editor-x")
	require.NoError(t, err)

	// Another window took the label over in the meantime.
	require.NoError(t, os.WriteFile(path, []byte("1"), 0644))
	withdraw()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}
