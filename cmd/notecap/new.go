package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var newResume string

// newCmd represents the new command
var newCmd = &cobra.Command{
	Use:   "new [text...]",
	Short: "Capture a note",
	Long: `Capture a note from the arguments, or from standard input when no
arguments are given. With --resume the note continues an existing one, which
is consumed.`,
	Run: func(cmd *cobra.Command, args []string) {
		text := strings.Join(args, " ")
		if text == "" && !isatty.IsTerminal(os.Stdin.Fd()) {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fatal("Failed to read stdin", err)
			}
			text = strings.TrimRight(string(data), "\n")
		}

		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel())
		defer app.Close()

		app.Session.Edit(text)
		if newResume != "" {
			resumed, err := app.Repo.MustGet(ctx, newResume)
			if err != nil {
				fatal("Failed to resume note", err)
			}
			app.Session.Resume(ctx, resumed)
		}

		note, err := app.Session.Submit(ctx)
		if err != nil {
			fatal("Failed to save note", err)
		}
		if note.ID == "" {
			fmt.Fprintln(os.Stderr, "Nothing to capture.")
			return
		}

		// Let the generator settle so the printed title is the final one.
		app.Session.Wait()
		if titled, ok := app.Session.Note(note.ID); ok {
			note = titled
		}
		fmt.Printf("%s %s %v\n", note.ID, note.Title, note.Tags)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVarP(&newResume, "resume", "r", "", "ID of the note to continue")
}
