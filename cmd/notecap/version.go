package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notecap"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of notecap",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("notecap version %s\n", strings.TrimSpace(notecap.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
