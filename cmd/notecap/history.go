package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap/pkg/generator"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List the recorded versions of a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel())
		defer app.Close()

		versions, err := app.Repo.History(ctx, args[0])
		if err != nil {
			fatal("Failed to read history", err)
		}

		if historyJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(versions); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		for _, v := range versions {
			fmt.Printf("v%-3d %s  %s\n", v.Version, v.CreatedAt.Local().Format("2006-01-02 15:04"), generator.FallbackTitle(v.Content))
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")
}
