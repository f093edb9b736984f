package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/cvflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cvflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cvflow version %s\n", strings.TrimSpace(cvflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
