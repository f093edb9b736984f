package cvflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/internal/runtime"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
	"github.com/aretw0/cvflow/pkg/property"
	"github.com/aretw0/cvflow/pkg/registry"
)

// Engine is the high-level entry point of the library.
// It binds a node type registry to one live graph and its run controller.
// Create one Engine per pipeline session.
type Engine struct {
	ctrl        *runtime.Controller
	registry    *registry.Registry
	bus         *property.Bus
	loaders     []ports.PluginLoader
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.Option
	Name        string
}

var _ ports.Pipeline = (*Engine)(nil)
var _ domain.ActionHost = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated use merges them.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithRegistry shares an existing registry instead of creating a private one.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithPluginLoader adds a loader whose plugins are ingested by New.
func WithPluginLoader(l ports.PluginLoader) Option {
	return func(e *Engine) {
		e.loaders = append(e.loaders, l)
	}
}

// WithConcurrency lets up to n independent nodes of the same depth run at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithConcurrency(n))
	}
}

// WithCycleInterval sets the pause between cycles of a continuous run.
func WithCycleInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCycleInterval(d))
	}
}

// WithName labels the pipeline. It becomes the name of exported documents.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New initializes an engine and ingests the plugins of every configured loader.
// A loader that fails as a whole aborts New; individual plugin failures do not.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	eng := &Engine{bus: property.NewBus()}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("pipeline", eng.Name)
	}
	if eng.registry == nil {
		eng.registry = registry.NewRegistry(registry.WithLogger(eng.logger))
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
	}
	eng.ctrl = runtime.NewController(append(runtimeOpts, eng.runtimeOpts...)...)

	for _, l := range eng.loaders {
		if err := eng.LoadPlugins(ctx, l); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// LoadPlugins ingests every result produced by l.
func (e *Engine) LoadPlugins(ctx context.Context, l ports.PluginLoader) error {
	results, err := l.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	for _, f := range e.registry.Ingest(results...) {
		if e.hooks.OnPluginFailure != nil {
			e.hooks.OnPluginFailure(ctx, f)
		}
	}
	return nil
}

// Registry returns the node type registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Categories returns the grouped view of node types and menu actions.
func (e *Engine) Categories() []domain.Category {
	return e.registry.Categories()
}

func (e *Engine) resolve(spec domain.NodeSpec) (*domain.NodeType, error) {
	var (
		nt *domain.NodeType
		ok bool
	)
	if spec.Category != "" {
		nt, ok = e.registry.LookupIn(spec.Category, spec.Type)
	} else {
		nt, ok = e.registry.Lookup(spec.Type)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownNodeType, spec.Type)
	}
	return nt, nil
}

// AddNode places a node of a registered type and applies spec.Properties.
// If any property is rejected the node is not added.
func (e *Engine) AddNode(spec domain.NodeSpec) (string, error) {
	nt, err := e.resolve(spec)
	if err != nil {
		return "", err
	}
	id, err := e.ctrl.AddNode(spec.ID, nt)
	if err != nil {
		return "", err
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Properties)) {
		if err := e.ctrl.SetProperty(id, name, spec.Properties[name]); err != nil {
			_ = e.ctrl.RemoveNode(id)
			return "", err
		}
	}
	return id, nil
}

// RemoveNode removes a node, its connections and its processor.
func (e *Engine) RemoveNode(id string) error {
	return e.ctrl.RemoveNode(id)
}

// Connect links a source port to a target port.
// Connections that would close a cycle fail with a *domain.CyclicGraphError.
func (e *Engine) Connect(c domain.Connection) error {
	return e.ctrl.Connect(c)
}

// Disconnect removes a connection.
func (e *Engine) Disconnect(c domain.Connection) error {
	return e.ctrl.Disconnect(c)
}

// SetProperty writes one property value and notifies subscribers.
func (e *Engine) SetProperty(nodeID, name string, value any) error {
	prev, err := e.ctrl.SwapProperty(nodeID, name, value)
	if err != nil {
		return err
	}
	e.bus.Publish(property.Change{NodeID: nodeID, Name: name, Value: property.CloneValue(value), Previous: prev})
	return nil
}

// Property returns one property value of a node.
func (e *Engine) Property(nodeID, name string) (any, bool) {
	props, err := e.ctrl.Properties(nodeID)
	if err != nil {
		return nil, false
	}
	v, ok := props[name]
	return v, ok
}

// Properties returns all property values of a node.
func (e *Engine) Properties(nodeID string) (map[string]any, error) {
	return e.ctrl.Properties(nodeID)
}

// Subscribe returns a channel of accepted property changes for editing surfaces.
func (e *Engine) Subscribe(buffer int) (<-chan property.Change, func()) {
	return e.bus.Subscribe(buffer)
}

// Run starts continuous propagation. It is a no-op unless the engine is idle.
func (e *Engine) Run(ctx context.Context) {
	e.ctrl.Run(ctx)
}

// Stop lets the in-flight cycle finish and prevents the next one.
func (e *Engine) Stop() {
	e.ctrl.Stop()
}

// Wait blocks until a stopped run has fully halted.
func (e *Engine) Wait() {
	e.ctrl.Wait()
}

// Step runs exactly one cycle. It fails with domain.ErrNotIdle while running.
func (e *Engine) Step(ctx context.Context) error {
	_, err := e.ctrl.Step(ctx)
	return err
}

// State returns the run state.
func (e *Engine) State() domain.RunState {
	return e.ctrl.State()
}

// Cycle returns the number of the last completed cycle.
func (e *Engine) Cycle() uint64 {
	return e.ctrl.Snapshot().Cycle
}

// Outputs returns the buffers a node emitted on the last completed cycle.
func (e *Engine) Outputs(nodeID string) ([]domain.Buffer, error) {
	return e.ctrl.Outputs(nodeID)
}

// Failures returns the processor failures of the last completed cycle.
func (e *Engine) Failures() map[string]*domain.ProcessorError {
	return e.ctrl.Failures()
}

// ClearFailures forgets recorded processor and plugin failures.
func (e *Engine) ClearFailures() {
	e.ctrl.ClearFailures()
	e.registry.ClearFailures()
}

// Order returns the node ids in scheduling order.
func (e *Engine) Order() []string {
	return e.ctrl.Order()
}

// Trigger runs a registered menu action against this engine.
func (e *Engine) Trigger(ctx context.Context, actionID string) error {
	action, ok := e.registry.Action(actionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrActionNotFound, actionID)
	}
	e.logger.Debug("Running menu action", "action", actionID)
	return action.Run(ctx, e)
}

// Export describes the live graph as a document.
func (e *Engine) Export() *domain.GraphDocument {
	doc := &domain.GraphDocument{Name: e.Name}
	for _, n := range e.ctrl.Nodes() {
		spec := domain.NodeSpec{ID: n.ID, Type: n.Type.ID, Category: n.Type.ComponentCategory()}
		if len(n.Properties) > 0 {
			spec.Properties = n.Properties
		}
		doc.Nodes = append(doc.Nodes, spec)
	}
	doc.Connections = e.ctrl.Connections()
	return doc
}

// Import replaces the live graph with doc. The engine must be idle.
// The document is fully validated first; on any error the live graph is untouched.
func (e *Engine) Import(doc *domain.GraphDocument) (err error) {
	if doc == nil {
		return errors.New("nil document")
	}
	g := runtime.NewGraph()
	defer func() {
		if err != nil {
			_ = g.Discard()
		}
	}()
	for _, spec := range doc.Nodes {
		nt, err := e.resolve(spec)
		if err != nil {
			return fmt.Errorf("node %s: %w", spec.ID, err)
		}
		id, err := g.AddNode(spec.ID, nt)
		if err != nil {
			return err
		}
		for _, name := range slices.Sorted(maps.Keys(spec.Properties)) {
			if err := g.SetProperty(id, name, spec.Properties[name]); err != nil {
				return fmt.Errorf("node %s: %w", id, err)
			}
		}
	}
	for _, c := range doc.Connections {
		if err := g.Connect(c); err != nil {
			return err
		}
	}
	if err := e.ctrl.Replace(g); err != nil {
		return err
	}
	if doc.Name != "" {
		e.Name = doc.Name
	}
	e.logger.Info("Pipeline imported", "nodes", len(doc.Nodes), "connections", len(doc.Connections))
	return nil
}

// Close stops the engine, closes every processor and ends all subscriptions.
func (e *Engine) Close() error {
	err := e.ctrl.Close()
	e.bus.Close()
	return err
}
