package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap"
	lifecycleadapter "github.com/aretw0/notecap/pkg/adapters/lifecycle"
	"github.com/aretw0/notecap/pkg/bus"
	"github.com/aretw0/notecap/pkg/core"
)

var watchWindow string

// watchCmd runs the main window headless: it prints the visible list and
// then every live update until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow notes as other windows change them",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, _ := openApp(ctx, watchWindow,
			notecap.WithListPolicy(cfg.ListPolicy()),
			notecap.WithStoreWatch(cfg.Store.Watch),
		)
		defer app.Close()

		fmt.Printf("Watching %s (%s)\n", app.Path, cfg.ListPolicy())
		for _, note := range app.Session.Notes() {
			fmt.Println(formatNote(note))
		}

		source := lifecycleadapter.NewSource(app.Bus, bus.EventNoteUpdated, bus.EventToggleWindow)
		if err := source.Start(ctx); err != nil {
			fatal("Failed to follow the bus", err)
		}
		for ev := range source.Events() {
			e, ok := ev.(lifecycleadapter.Event)
			if !ok {
				continue
			}
			switch e.Event {
			case bus.EventNoteUpdated:
				var note core.Note
				if err := e.Decode(&note); err != nil {
					continue
				}
				fmt.Printf("%s: %s\n", e, formatNote(note))
			case bus.EventToggleWindow:
				fmt.Println(e)
			}
		}
	},
}

var toggleWindow string

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Ask a window to show or hide itself",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel())
		defer app.Close()

		if err := app.Bus.EmitTo(ctx, toggleWindow, bus.EventToggleWindow, nil); err != nil {
			fatal("Failed to toggle window", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd, toggleCmd)
	watchCmd.Flags().StringVar(&watchWindow, "window", notecap.DefaultLabel, "Window label")
	toggleCmd.Flags().StringVar(&toggleWindow, "window", notecap.DefaultLabel, "Window label")
}
