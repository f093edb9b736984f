package domain

import "context"

// Buffer is an opaque payload passed along connections.
// The engine stores and forwards buffers but never inspects them.
type Buffer = any

// Releaser is implemented by buffers that hold resources.
// The engine calls Release once a buffer is superseded or its node is removed.
type Releaser interface {
	Release()
}

// Processor is the stateful transform bound to one node instance.
//
// inputs are assembled positionally according to the node type's arity mode.
// An empty result means "produced nothing this cycle" and is not an error.
// Processors must treat inputs as read-only and copy before modifying.
type Processor interface {
	Process(ctx context.Context, inputs []Buffer) ([]Buffer, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, inputs []Buffer) ([]Buffer, error)

func (f ProcessorFunc) Process(ctx context.Context, inputs []Buffer) ([]Buffer, error) {
	return f(ctx, inputs)
}

// Configurable is implemented by processors that hold property values.
// *property.Store satisfies it, so processors usually embed one.
type Configurable interface {
	Property(name string) (any, bool)
	SetProperty(name string, value any) error
	Properties() map[string]any
}

// ProcessorFactory builds one fresh processor per node instance.
type ProcessorFactory func() Processor
