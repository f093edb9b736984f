package main

import (
	"github.com/aretw0/cvflow/internal/cli"
	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the available node types and actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return cli.Nodes(cmd.Context(), commonOptions(cmd), asJSON, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
	nodesCmd.Flags().Bool("json", false, "Print the catalog as JSON")
}
