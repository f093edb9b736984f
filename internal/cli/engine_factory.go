package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/cvflow"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/observability"
	"github.com/aretw0/cvflow/pkg/plugins/builtin"
)

// createEngine initializes an engine with the compiled-in plugins and the
// standard CLI hooks. Print nodes write to out.
func createEngine(ctx context.Context, opts Options, logger *slog.Logger, out io.Writer, hooks ...domain.LifecycleHooks) (*cvflow.Engine, error) {
	engineOpts := []cvflow.Option{
		cvflow.WithLogger(logger),
		cvflow.WithPluginLoader(builtin.New(builtin.WithOutput(out))),
		cvflow.WithLifecycleHooks(observability.LogHooks(logger)),
	}
	if opts.Concurrency > 1 {
		engineOpts = append(engineOpts, cvflow.WithConcurrency(opts.Concurrency))
	}
	if opts.Interval > 0 {
		engineOpts = append(engineOpts, cvflow.WithCycleInterval(opts.Interval))
	}
	for _, h := range hooks {
		engineOpts = append(engineOpts, cvflow.WithLifecycleHooks(h))
	}

	engine, err := cvflow.New(ctx, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}
