package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/notecap"
	"github.com/aretw0/notecap/pkg/core"
)

var (
	listDays  int
	listAll   bool
	filterTag string
	listJSON  bool
	listYAML  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, pinned first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		policy := cfg.ListPolicy()
		if cmd.Flags().Changed("days") {
			policy = core.ListPolicy{WindowDays: listDays}
		}
		if listAll {
			policy = core.AllNotes
		}

		ctx := context.Background()
		app, _ := openApp(ctx, cliLabel(), notecap.WithListPolicy(policy))
		defer app.Close()

		var filtered []core.Note
		for _, note := range app.Session.Notes() {
			if filterTag != "" && !note.HasTag(filterTag) {
				continue
			}
			filtered = append(filtered, note)
		}

		switch {
		case listJSON:
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(filtered); err != nil {
				fatal("Error encoding JSON", err)
			}
		case listYAML:
			encoder := yaml.NewEncoder(os.Stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(filtered); err != nil {
				fatal("Error encoding YAML", err)
			}
			_ = encoder.Close()
		default:
			for _, note := range filtered {
				fmt.Println(formatNote(note))
			}
		}
	},
}

// formatNote is the one-line listing of a note.
func formatNote(n core.Note) string {
	marks := []byte("  ")
	if n.Pinned {
		marks[0] = '^'
	}
	if n.Favorite {
		marks[1] = '*'
	}
	line := fmt.Sprintf("%s %s  %s", marks, n.ID, n.Title)
	if len(n.Tags) > 0 {
		line += "  #" + strings.Join(n.Tags, " #")
	}
	return line
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listDays, "days", core.DefaultRecentWindow, "Only notes updated within this many days (0 for all)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "List every note")
	listCmd.Flags().StringVar(&filterTag, "tag", "", "Filter notes by tag")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVar(&listYAML, "yaml", false, "Output in YAML format")
	listCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}
