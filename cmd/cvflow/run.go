package main

import (
	"context"

	"github.com/aretw0/cvflow/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline>",
	Short: "Run a pipeline",
	Long: `Loads a pipeline file, or a pipeline from the store by name, and runs it.
Without --cycles it runs continuously until interrupted; the last outputs and
failures are printed on exit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cycles, _ := cmd.Flags().GetInt("cycles")
		watch, _ := cmd.Flags().GetBool("watch")
		quiet, _ := cmd.Flags().GetBool("quiet")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Execute(sigCtx, cli.RunOptions{
			Options: commonOptions(cmd),
			Target:  args[0],
			Cycles:  cycles,
			Watch:   watch,
			Quiet:   quiet,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("cycles", "n", 0, "Stop after n cycles (0 runs until interrupted)")
	runCmd.Flags().BoolP("watch", "w", false, "Re-import the pipeline file whenever it changes")
	runCmd.Flags().BoolP("quiet", "q", false, "Only print pipeline output")
}
