package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap"
	"github.com/aretw0/notecap/pkg/bus"
	"github.com/aretw0/notecap/pkg/core"
	"github.com/aretw0/notecap/pkg/windows"
)

var (
	editorNote   string
	editorWindow string
	editorView   string
)

// editorCmd is the process behind one editor window.
var editorCmd = &cobra.Command{
	Use:   "editor",
	Short: "Run the editor window of a note",
	Long: `Run the editor window of a note: the note is opened in $VISUAL or
$EDITOR and saved back when the editor exits. The window announces itself
so that 'notecap open' focuses it instead of opening a second one.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		id := editorNote
		if id == "" {
			id, _ = windows.NoteFromView(editorView)
		}
		if id == "" {
			fatal("Invalid arguments", errors.New("--note or an editor --view is required"))
		}
		label := editorWindow
		if label == "" {
			label = os.Getenv("NOTECAP_WINDOW_LABEL")
		}
		if label == "" {
			label = windows.EditorLabel(id)
		}

		if err := runEditor(id, label); err != nil {
			fatal("Editor failed", err)
		}
	},
}

func runEditor(id, label string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, root := openApp(ctx, label, notecap.WithStoreWatch(cfg.Store.Watch))
	defer app.Close()

	withdraw, err := windows.Announce(windowsDir(root), label)
	if errors.Is(err, windows.ErrWindowExists) {
		if err := app.Bus.EmitTo(ctx, label, bus.EventFocusWindow, nil); err != nil {
			return fmt.Errorf("focus window: %w", err)
		}
		fmt.Printf("Window %s is already open, focused it\n", label)
		return nil
	}
	if err != nil {
		return fmt.Errorf("announce window: %w", err)
	}
	defer withdraw()

	unsub, err := app.Bus.Listen(bus.EventFocusWindow, func(m core.Message) {
		slog.Info("focus requested", "window", label, "from", m.Source)
		fmt.Fprint(os.Stderr, "\a")
	})
	if err != nil {
		return err
	}
	defer unsub()

	note, err := app.Repo.MustGet(ctx, id)
	if err != nil {
		return err
	}

	edited, err := editText(ctx, note.Content)
	if ctx.Err() != nil {
		slog.Debug("editor window closed without saving", "window", label)
		return nil
	}
	if err != nil {
		return err
	}
	if edited == note.Content {
		fmt.Println("No changes.")
		return nil
	}

	saved, err := app.Session.SaveEdit(ctx, id, edited)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s %s\n", saved.ID, saved.Title)
	return nil
}

// editText round-trips content through the user's editor.
func editText(ctx context.Context, content string) (string, error) {
	f, err := os.CreateTemp("", "notecap-*.md")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	argv := append(strings.Fields(editor), f.Name())

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s: %w", argv[0], err)
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(editorCmd)
	editorCmd.Flags().StringVar(&editorNote, "note", "", "ID of the note to edit")
	editorCmd.Flags().StringVar(&editorWindow, "window", "", "Window label (default from the note ID)")
	editorCmd.Flags().StringVar(&editorView, "view", "", "Editor view, as created by the window manager")
}
