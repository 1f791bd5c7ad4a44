package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize captured notes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel())
		defer app.Close()

		s := app.Session.Stats(time.Now())
		if statsJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(s); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		fmt.Printf("Total:      %d\n", s.Total)
		fmt.Printf("Today:      %d\n", s.Today)
		fmt.Printf("This week:  %d\n", s.Week)
		fmt.Printf("Favorites:  %d\n", s.Favorites)
		fmt.Printf("Pinned:     %d\n", s.Pinned)
		fmt.Printf("Avg length: %d\n", s.AvgLength)
		fmt.Printf("Streak:     %d days\n", s.Streak)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
}
