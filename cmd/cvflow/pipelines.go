package main

import (
	"github.com/aretw0/cvflow/internal/cli"
	"github.com/aretw0/cvflow/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var pipelinesCmd = &cobra.Command{
	Use:     "pipelines",
	Aliases: []string{"pl"},
	Short:   "Manage stored pipelines",
	Long:    `List, show, save and remove pipelines kept in the store selected by --dir or --redis.`,
}

var pipelinesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored pipelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListPipelines(cmd.Context(), commonOptions(cmd), cmd.OutOrStdout())
	},
}

var pipelinesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := file.FormatYAML
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			format = file.FormatJSON
		}
		return cli.ShowPipeline(cmd.Context(), commonOptions(cmd), args[0], format, cmd.OutOrStdout())
	},
}

var pipelinesSaveCmd = &cobra.Command{
	Use:   "save <file> [name]",
	Short: "Validate a pipeline file and store it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		return cli.SavePipeline(cmd.Context(), commonOptions(cmd), args[0], name, cmd.OutOrStdout())
	},
}

var pipelinesRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a stored pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.DeletePipeline(cmd.Context(), commonOptions(cmd), args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(pipelinesCmd)
	pipelinesCmd.AddCommand(pipelinesLsCmd, pipelinesShowCmd, pipelinesSaveCmd, pipelinesRmCmd)
	pipelinesShowCmd.Flags().Bool("json", false, "Print JSON instead of YAML")
}
