package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercast-ai/papercast/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "papercast %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.Date)
	},
}
