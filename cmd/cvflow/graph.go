package main

import (
	"github.com/aretw0/cvflow/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <pipeline>",
	Short: "Export the pipeline graph visualization",
	Long:  `Outputs a Mermaid diagram (graph LR) of the pipeline. With --check the pipeline runs one cycle and failing nodes are highlighted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")
		return cli.Graph(cmd.Context(), commonOptions(cmd), args[0], check, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("check", false, "Run one cycle and highlight failing nodes")
}
