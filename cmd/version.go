package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set at build time, e.g.
// go build -ldflags "-X github.com/hiroksarker/testgenius-ai-sub000/cmd.Version=1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the testgenius version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("testgenius %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
