package main

import (
	"context"

	"github.com/aretw0/cvflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [pipeline]",
	Short: "Start the HTTP control server",
	Long: `Exposes one engine over a JSON API with Server-Sent Events and Prometheus
metrics. When a stored pipeline name is given it is opened on start and saved
back on shutdown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := serveOptions(cmd, args)
		opts.Autorun, _ = cmd.Flags().GetBool("run")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.Serve(sigCtx, opts, cmd.OutOrStdout())
	},
}

func serveOptions(cmd *cobra.Command, args []string) cli.ServeOptions {
	opts := cli.ServeOptions{Options: commonOptions(cmd)}
	opts.Port, _ = cmd.Flags().GetInt("port")
	if len(args) > 0 {
		opts.Pipeline = args[0]
	}
	return opts
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().Bool("run", false, "Start the pipeline immediately")
}
