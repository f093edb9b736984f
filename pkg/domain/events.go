package domain

import (
	"context"
	"time"
)

// StateEvent is emitted on every run-state transition.
type StateEvent struct {
	Timestamp time.Time `json:"timestamp"`
	From      RunState  `json:"from"`
	To        RunState  `json:"to"`
}

// CycleEvent describes one scheduler pass.
type CycleEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Cycle     uint64        `json:"cycle"`
	Nodes     int           `json:"nodes"`
	Failures  int           `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"` // Set on cycle end only
}

// NodeEvent describes one processor invocation.
type NodeEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Cycle     uint64        `json:"cycle"`
	NodeID    string        `json:"node_id"`
	NodeType  string        `json:"node_type"`
	Inputs    int           `json:"inputs"`
	Outputs   int           `json:"outputs"`
	Duration  time.Duration `json:"duration"`
}

// OutputEvent marks a source port as holding fresh data.
type OutputEvent struct {
	Cycle  uint64 `json:"cycle"`
	NodeID string `json:"node_id"`
	Port   int    `json:"port"`
	Buffer Buffer `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously inside the cycle and must not block. When the engine
// runs nodes concurrently, node-level hooks may be called from several goroutines.
type LifecycleHooks struct {
	OnStateChange   func(context.Context, *StateEvent)
	OnCycleStart    func(context.Context, *CycleEvent)
	OnCycleEnd      func(context.Context, *CycleEvent)
	OnNodeProcess   func(context.Context, *NodeEvent)
	OnOutput        func(context.Context, *OutputEvent)
	OnNodeFailure   func(context.Context, *ProcessorError)
	OnPluginFailure func(context.Context, *PluginLoadFailure)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateChange:   chain(h.OnStateChange, other.OnStateChange),
		OnCycleStart:    chain(h.OnCycleStart, other.OnCycleStart),
		OnCycleEnd:      chain(h.OnCycleEnd, other.OnCycleEnd),
		OnNodeProcess:   chain(h.OnNodeProcess, other.OnNodeProcess),
		OnOutput:        chain(h.OnOutput, other.OnOutput),
		OnNodeFailure:   chain(h.OnNodeFailure, other.OnNodeFailure),
		OnPluginFailure: chain(h.OnPluginFailure, other.OnPluginFailure),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
