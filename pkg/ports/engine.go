package ports

import (
	"context"

	"github.com/aretw0/cvflow/pkg/domain"
)

// Pipeline is the control surface of one live graph.
// It is the interface used by adapters (HTTP, MCP, CLI) to drive an engine.
type Pipeline interface {
	// Categories returns the registry's grouped view of node types and actions.
	Categories() []domain.Category

	// AddNode places a node of a registered type and returns its id.
	AddNode(spec domain.NodeSpec) (string, error)
	RemoveNode(id string) error
	Connect(c domain.Connection) error
	Disconnect(c domain.Connection) error

	// SetProperty fails with a *property.ValidationError and keeps the prior value
	// when value does not match the declared kind.
	SetProperty(nodeID, name string, value any) error
	Properties(nodeID string) (map[string]any, error)

	// Run and Stop are idempotent. Stop lets the in-flight cycle finish.
	Run(ctx context.Context)
	Stop()
	// Step runs exactly one cycle. It fails with domain.ErrNotIdle while running.
	Step(ctx context.Context) error
	State() domain.RunState

	// Outputs returns the buffers a node emitted on the last completed cycle.
	Outputs(nodeID string) ([]domain.Buffer, error)
	Failures() map[string]*domain.ProcessorError

	Export() *domain.GraphDocument
	Import(doc *domain.GraphDocument) error

	// Trigger runs a registered menu action.
	Trigger(ctx context.Context, actionID string) error
}
