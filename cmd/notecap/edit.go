package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap/pkg/core"
	"github.com/aretw0/notecap/pkg/session"
)

var branchCmd = &cobra.Command{
	Use:   "branch <id>",
	Short: "Fork a note, carrying its history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel())
		defer app.Close()

		note, err := app.Repo.MustGet(ctx, args[0])
		if err != nil {
			fatal("Failed to read note", err)
		}
		branched, err := app.Session.Branch(ctx, note)
		if err != nil {
			fatal("Failed to branch note", err)
		}
		fmt.Printf("Branched %s -> %s\n", note.ID, branched.ID)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel())
		defer app.Close()

		if err := app.Session.Delete(ctx, args[0]); err != nil {
			fatal("Failed to delete note", err)
		}
		fmt.Printf("Note '%s' deleted.\n", args[0])
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle the favorite flag of a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		note := flipFlag(args[0], (*session.Controller).Favorite)
		fmt.Printf("%s favorite: %t\n", note.ID, note.Favorite)
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Toggle the pinned flag of a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		note := flipFlag(args[0], (*session.Controller).Pin)
		fmt.Printf("%s pinned: %t\n", note.ID, note.Pinned)
	},
}

func flipFlag(id string, flip func(*session.Controller, context.Context, string) (core.Note, error)) core.Note {
	ctx := context.Background()
	app, _ := openApp(ctx, cliLabel())
	defer app.Close()

	note, err := flip(app.Session, ctx, id)
	if err != nil {
		fatal("Failed to update note", err)
	}
	return note
}

func init() {
	rootCmd.AddCommand(branchCmd, deleteCmd, favoriteCmd, pinCmd)
}
