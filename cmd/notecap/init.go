package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a notecap store in the current directory",
	Long: `Initialize a notecap store in the current directory. It writes a
default notecap.yaml and creates the .notecap system directory.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}

		defaults, err := config.Default()
		if err != nil {
			fatal("Failed to build default configuration", err)
		}
		defaults.Store.Path = "."

		if err := defaults.Write(filepath.Join(cwd, config.FileName)); err != nil {
			if os.IsExist(err) {
				fatal("Already initialized", err)
			}
			fatal("Failed to write configuration", err)
		}
		if err := os.MkdirAll(filepath.Join(cwd, systemDir), 0755); err != nil {
			fatal("Failed to create system directory", err)
		}

		fmt.Println("Initialized empty notecap store in", cwd)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
