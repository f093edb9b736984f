package main

import (
	"context"

	"github.com/aretw0/cvflow/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [pipeline]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes one engine as MCP tools, so agents can build, run and inspect pipelines.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := serveOptions(cmd, args)
		opts.Transport, _ = cmd.Flags().GetString("transport")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		// Stdout carries JSON-RPC on stdio, so Print nodes write to stderr.
		return cli.ServeMCP(sigCtx, opts, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().IntP("port", "p", 8080, "Port to listen on (only for SSE)")
}
