package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/cvflow/pkg/domain"
)

// LogHooks returns lifecycle hooks that write structured records to logger.
// Per-node events are logged at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "state changed", "from", e.From, "to", e.To)
		},
		OnCycleEnd: func(ctx context.Context, e *domain.CycleEvent) {
			logger.DebugContext(ctx, "cycle finished",
				"cycle", e.Cycle,
				"nodes", e.Nodes,
				"failures", e.Failures,
				"duration", e.Duration,
			)
		},
		OnNodeProcess: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node processed",
				"cycle", e.Cycle,
				"node_id", e.NodeID,
				"node_type", e.NodeType,
				"duration", e.Duration,
			)
		},
		OnNodeFailure: func(ctx context.Context, e *domain.ProcessorError) {
			logger.WarnContext(ctx, "node failed",
				"cycle", e.Cycle,
				"node_id", e.NodeID,
				"node_type", e.NodeType,
				"panicked", e.Panicked,
				"err", e.Err,
			)
		},
		OnPluginFailure: func(ctx context.Context, e *domain.PluginLoadFailure) {
			logger.ErrorContext(ctx, "plugin failed to load", "source", e.Source, "err", e.Err)
		},
	}
}
