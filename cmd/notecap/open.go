package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap/pkg/core"
	"github.com/aretw0/notecap/pkg/windows"
)

var openCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Open the editor window of a note, or focus it when already open",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.Bus.Transport != "spool" {
			fatal("Cannot open editor windows", fmt.Errorf("bus transport %q cannot reach other processes", cfg.Bus.Transport))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, root := openApp(ctx, cliLabel())
		defer app.Close()

		system, err := windows.NewProcessSystem(ctx, windows.ProcessConfig{
			Dir:    windowsDir(root),
			Args:   editorArgs,
			Bus:    app.Bus,
			Stdio:  true,
			Logger: slog.Default(),
		})
		if err != nil {
			fatal("Failed to start window system", err)
		}
		defer system.Stop()

		note, err := app.Repo.MustGet(ctx, args[0])
		if err != nil {
			fatal("Failed to read note", err)
		}

		// Register before opening so a fast editor exit is not missed.
		closed := make(chan struct{})
		label := windows.EditorLabel(note.ID)
		unsub := system.Once(label, core.WindowDestroyed, func() { close(closed) })
		defer unsub()

		manager := windows.NewManager(system, app.Repo, windows.WithLogger(slog.Default()))
		opened, err := manager.OpenForEdit(ctx, note)
		if err != nil {
			fatal("Failed to open editor", err)
		}
		if !opened.Created {
			fmt.Printf("Focused %s\n", opened.Label)
			return
		}

		select {
		case <-closed:
		case <-ctx.Done():
			_ = manager.Close(context.Background(), note.ID)
		}
	},
}

// editorArgs is the command line of an editor window process.
func editorArgs(spec core.WindowSpec) []string {
	args := []string{"editor", "--window", spec.Label, "--view", spec.View}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	return args
}

func init() {
	rootCmd.AddCommand(openCmd)
}
