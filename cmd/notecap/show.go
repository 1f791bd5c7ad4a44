package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note, rendered for the terminal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel())
		defer app.Close()

		note, err := app.Repo.MustGet(ctx, args[0])
		if err != nil {
			fatal("Failed to read note", err)
		}

		body := note.Content
		if !showRaw {
			if body, err = app.Renderer.Render(note.Content); err != nil {
				fatal("Failed to render note", err)
			}
		}

		fmt.Printf("%s (v%d, updated %s)\n", note.Title, note.Version, note.UpdatedAt.Local().Format("2006-01-02 15:04"))
		if len(note.Tags) > 0 {
			fmt.Println("#" + strings.Join(note.Tags, " #"))
		}
		fmt.Println()
		fmt.Println(body)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the markdown source")
}
