package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/cvflow/pkg/adapters/mcp"
)

// ServeMCP exposes the engine as MCP tools over stdio or SSE. Pipeline
// output goes to out, which must not be the stdio transport.
func ServeMCP(ctx context.Context, opts ServeOptions, out io.Writer) (err error) {
	s, err := newStack(ctx, opts, out)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close(ctx))
	}()

	srv := mcp.NewServer(s.engine, mcp.WithStore(s.backing.store), mcp.WithLogger(s.logger))
	switch opts.Transport {
	case "", "stdio":
		s.logger.Info("Starting MCP server (stdio)")
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, opts.Port)
	default:
		return fmt.Errorf("unknown transport %q, supported: stdio, sse", opts.Transport)
	}
}
