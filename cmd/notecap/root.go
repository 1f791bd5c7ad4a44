package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap/internal/config"
)

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notecap",
	Short: "Quick-capture notes shared across windows",
	Long: `notecap captures short notes, titles and tags them in the background,
and keeps every open window (the main list and one editor per note) in sync.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load(configPath)
		if err != nil {
			fatal("Failed to load configuration", err)
		}
		cfg = loaded

		level := cfg.LogLevel()
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./notecap.yaml or $NOTECAP_CONFIG)")
}
