package runtime

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
	"golang.org/x/sync/errgroup"
)

// Result is the published outcome of one completed cycle.
// Readers never observe a partially updated cycle.
type Result struct {
	Cycle    uint64
	Outputs  map[string][]domain.Buffer
	Failures map[string]*domain.ProcessorError
}

func emptyResult(cycle uint64) *Result {
	return &Result{
		Cycle:    cycle,
		Outputs:  make(map[string][]domain.Buffer),
		Failures: make(map[string]*domain.ProcessorError),
	}
}

// NodeInfo describes a node instance for export and introspection.
type NodeInfo struct {
	ID         string
	Type       *domain.NodeType
	Properties map[string]any
}

type propertySet struct {
	node  *node
	name  string
	value any
}

// Controller owns a live graph and drives its propagation cycles.
//
// Edits are serialized through the controller. Structural edits land in the
// graph immediately but a running cycle works on the plan it snapshotted at its
// start, so they are observed from the next cycle on. Property writes that
// arrive during a cycle are queued and applied at its end.
type Controller struct {
	mu        sync.Mutex
	graph     *Graph
	state     domain.RunState
	inCycle   bool
	pending   []propertySet
	graveyard []*node
	stop      chan struct{}
	done      chan struct{}
	cycles    uint64

	cycleMu sync.Mutex // one cycle at a time, whether from Run or Step
	result  atomic.Pointer[Result]

	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	concurrency int
	interval    time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
// With concurrency above 1, node-level hooks are called from worker goroutines.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithConcurrency lets up to n nodes of the same dependency depth run at once.
// Values below 2 keep strictly sequential execution.
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		c.concurrency = max(n, 1)
	}
}

// WithCycleInterval sets the pause between cycles of a continuous run.
func WithCycleInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.interval = max(d, 0)
	}
}

// NewController creates an idle controller over an empty graph.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		graph:       NewGraph(),
		state:       domain.StateIdle,
		logger:      logging.NewNop(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.result.Store(emptyResult(0))
	return c
}

// State returns the current run state.
func (c *Controller) State() domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run starts continuous propagation in a background goroutine.
// It is a no-op unless the controller is idle. Cancelling ctx stops the loop
// like Stop does: the in-flight cycle finishes first.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	if c.state != domain.StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateRunning
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	c.logger.Info("Pipeline running", "concurrency", c.concurrency, "interval", c.interval)
	c.emitState(ctx, domain.StateIdle, domain.StateRunning)
	go c.loop(ctx, stop, done)
}

func (c *Controller) loop(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		prev := c.state
		c.state = domain.StateIdle
		c.mu.Unlock()

		c.logger.Info("Pipeline stopped", "cycles", c.result.Load().Cycle)
		c.emitState(ctx, prev, domain.StateIdle)
		close(done)
	}()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.cycle(ctx)

		if c.interval > 0 {
			timer := time.NewTimer(c.interval)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// Stop asks a running loop to halt after the in-flight cycle.
// It does not wait; use Wait for that. Stop on an idle controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != domain.StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateStopping
	close(c.stop)
	c.mu.Unlock()

	c.emitState(context.Background(), domain.StateRunning, domain.StateStopping)
}

// Wait blocks until the loop started by the last Run has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Step runs exactly one cycle synchronously. The controller must be idle.
func (c *Controller) Step(ctx context.Context) (*Result, error) {
	if c.State() != domain.StateIdle {
		return nil, domain.ErrNotIdle
	}
	return c.cycle(ctx), nil
}

func (c *Controller) cycle(ctx context.Context) *Result {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.mu.Lock()
	c.applyPending()
	c.cycles++
	n := c.cycles
	p := c.graph.plan()
	dead := c.graveyard
	c.graveyard = nil
	c.inCycle = true
	c.mu.Unlock()

	c.bury(dead)

	start := time.Now()
	if c.hooks.OnCycleStart != nil {
		c.hooks.OnCycleStart(ctx, &domain.CycleEvent{Timestamp: start, Cycle: n, Nodes: len(p.steps)})
	}

	outs := make([][]domain.Buffer, len(p.steps))
	fails := make([]*domain.ProcessorError, len(p.steps))
	if c.concurrency > 1 {
		for _, level := range p.levels {
			var g errgroup.Group
			g.SetLimit(c.concurrency)
			for _, i := range level {
				g.Go(func() error {
					outs[i], fails[i] = c.invoke(ctx, n, &p.steps[i], outs)
					return nil
				})
			}
			_ = g.Wait()
		}
	} else {
		for i := range p.steps {
			outs[i], fails[i] = c.invoke(ctx, n, &p.steps[i], outs)
		}
	}

	res := emptyResult(n)
	for i, st := range p.steps {
		if len(outs[i]) > 0 {
			res.Outputs[st.id] = outs[i]
		}
		if fails[i] != nil {
			res.Failures[st.id] = fails[i]
		}
	}
	release(c.result.Swap(res), res)

	c.mu.Lock()
	c.inCycle = false
	c.applyPending()
	dead = c.graveyard
	c.graveyard = nil
	c.mu.Unlock()

	c.bury(dead)

	elapsed := time.Since(start)
	c.logger.Debug("Cycle completed", "cycle", n, "nodes", len(p.steps), "failures", len(res.Failures), "duration", elapsed)
	if c.hooks.OnCycleEnd != nil {
		c.hooks.OnCycleEnd(ctx, &domain.CycleEvent{
			Timestamp: time.Now(),
			Cycle:     n,
			Nodes:     len(p.steps),
			Failures:  len(res.Failures),
			Duration:  elapsed,
		})
	}
	return res
}

// invoke runs one processor and contains any failure to this node and cycle.
func (c *Controller) invoke(ctx context.Context, cycle uint64, st *step, outs [][]domain.Buffer) ([]domain.Buffer, *domain.ProcessorError) {
	in := st.inputs(outs)
	start := time.Now()
	out, panicked, err := safeProcess(ctx, st.proc, in)
	if err == nil && len(out) > len(st.typ.Sources) {
		err = fmt.Errorf("emitted %d buffers for %d source ports", len(out), len(st.typ.Sources))
	}

	// A failed node's buffers are dropped unreleased: they may be forwarded
	// inputs or cached buffers still owned by another producer.
	if err != nil {
		perr := &domain.ProcessorError{NodeID: st.id, NodeType: st.typ.ID, Cycle: cycle, Err: err, Panicked: panicked}
		c.logger.Warn("Processor failed", "node_id", st.id, "node_type", st.typ.ID, "cycle", cycle, "err", err)
		if c.hooks.OnNodeFailure != nil {
			c.hooks.OnNodeFailure(ctx, perr)
		}
		return nil, perr
	}

	if c.hooks.OnNodeProcess != nil {
		c.hooks.OnNodeProcess(ctx, &domain.NodeEvent{
			Timestamp: start,
			Cycle:     cycle,
			NodeID:    st.id,
			NodeType:  st.typ.ID,
			Inputs:    len(in),
			Outputs:   len(out),
			Duration:  time.Since(start),
		})
	}
	if c.hooks.OnOutput != nil {
		for port, b := range out {
			if b != nil {
				c.hooks.OnOutput(ctx, &domain.OutputEvent{Cycle: cycle, NodeID: st.id, Port: port, Buffer: b})
			}
		}
	}
	return out, nil
}

func safeProcess(ctx context.Context, proc domain.Processor, in []domain.Buffer) (out []domain.Buffer, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, panicked, err = nil, true, fmt.Errorf("panic: %v", r)
		}
	}()
	out, err = proc.Process(ctx, in)
	return out, false, err
}

// release frees the buffers of prev that did not survive into next.
func release(prev, next *Result) {
	if prev == nil {
		return
	}
	keep := make(map[any]bool)
	for _, bufs := range next.Outputs {
		for _, b := range bufs {
			if identifiable(b) {
				keep[b] = true
			}
		}
	}
	for _, bufs := range prev.Outputs {
		for _, b := range bufs {
			if !identifiable(b) {
				releaseAll([]domain.Buffer{b})
				continue
			}
			if keep[b] {
				continue
			}
			// The same buffer may be forwarded by several nodes.
			keep[b] = true
			releaseAll([]domain.Buffer{b})
		}
	}
}

func releaseAll(bufs []domain.Buffer) {
	for _, b := range bufs {
		if r, ok := b.(domain.Releaser); ok {
			r.Release()
		}
	}
}

// identifiable reports whether b can be used as a map key.
func identifiable(b any) bool {
	return b != nil && reflect.ValueOf(b).Comparable()
}

// bury closes processors of removed nodes.
func (c *Controller) bury(dead []*node) {
	for _, n := range dead {
		closer, ok := n.proc.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			c.logger.Warn("Failed to close processor", "node_id", n.id, "node_type", n.typ.ID, "err", err)
		}
	}
}

// applyPending flushes property writes queued during a cycle. Callers hold mu.
func (c *Controller) applyPending() {
	for _, ps := range c.pending {
		if c.graph.nodes[ps.node.id] != ps.node {
			continue // removed meanwhile
		}
		if err := ps.node.proc.(domain.Configurable).SetProperty(ps.name, ps.value); err != nil {
			c.logger.Warn("Deferred property write rejected", "node_id", ps.node.id, "property", ps.name, "err", err)
		}
	}
	c.pending = nil
}

func (c *Controller) emitState(ctx context.Context, from, to domain.RunState) {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(ctx, &domain.StateEvent{Timestamp: time.Now(), From: from, To: to})
	}
}

// AddNode places a node of type nt. An empty id is generated.
func (c *Controller) AddNode(id string, nt *domain.NodeType) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.graph.AddNode(id, nt)
	if err != nil {
		return "", err
	}
	c.logger.Debug("Node added", "node_id", id, "node_type", nt.ID)
	return id, nil
}

// RemoveNode removes a node and its connections. Its processor is closed right
// away unless a cycle is in flight, in which case it is closed when that cycle ends.
func (c *Controller) RemoveNode(id string) error {
	c.mu.Lock()
	n, err := c.graph.RemoveNode(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.graveyard = append(c.graveyard, n)
	var dead []*node
	if !c.inCycle {
		dead, c.graveyard = c.graveyard, nil
	}
	c.mu.Unlock()

	c.bury(dead)
	c.logger.Debug("Node removed", "node_id", id, "node_type", n.typ.ID)
	return nil
}

// Connect adds a connection; see Graph.Connect for the rejection rules.
func (c *Controller) Connect(conn domain.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Connect(conn)
}

// Disconnect removes a connection.
func (c *Controller) Disconnect(conn domain.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Disconnect(conn)
}

// NodeType returns the descriptor a node was created from.
func (c *Controller) NodeType(id string) (*domain.NodeType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.graph.node(id)
	if err != nil {
		return nil, err
	}
	return n.typ, nil
}

// SetProperty validates value against the node type's declaration and writes it
// to the processor. An invalid value is rejected and the prior value is kept.
func (c *Controller) SetProperty(id, name string, value any) error {
	_, err := c.SwapProperty(id, name, value)
	return err
}

// SwapProperty behaves like SetProperty and returns the value it replaced,
// read under the same lock as the write.
func (c *Controller) SwapProperty(id, name string, value any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.graph.node(id)
	if err != nil {
		return nil, err
	}
	prev := c.properties(n)[name]
	if !c.inCycle {
		if err := c.graph.SetProperty(id, name, value); err != nil {
			return nil, err
		}
		return prev, nil
	}
	if _, _, err := c.graph.checkProperty(id, name, value); err != nil {
		return nil, err
	}
	c.pending = append(c.pending, propertySet{node: n, name: name, value: property.CloneValue(value)})
	return prev, nil
}

// Properties returns the node's current property values, including writes
// still queued for the end of the running cycle.
func (c *Controller) Properties(id string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.graph.node(id)
	if err != nil {
		return nil, err
	}
	return c.properties(n), nil
}

func (c *Controller) properties(n *node) map[string]any {
	values := make(map[string]any)
	if conf, ok := n.proc.(domain.Configurable); ok {
		for k, v := range conf.Properties() {
			values[k] = property.CloneValue(v)
		}
	}
	for _, ps := range c.pending {
		if ps.node == n {
			values[ps.name] = property.CloneValue(ps.value)
		}
	}
	return values
}

// Nodes lists node instances in insertion order.
func (c *Controller) Nodes() []NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodes := slices.Collect(maps.Values(c.graph.nodes))
	slices.SortFunc(nodes, func(a, b *node) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]NodeInfo, len(nodes))
	for i, n := range nodes {
		out[i] = NodeInfo{ID: n.id, Type: n.typ, Properties: c.properties(n)}
	}
	return out
}

// Connections returns the connections in creation order.
func (c *Controller) Connections() []domain.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Connections()
}

// Order returns the current topological order of node ids.
func (c *Controller) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.graph.Order())
}

// Replace swaps in a whole new graph. The controller must be idle.
func (c *Controller) Replace(g *Graph) error {
	c.mu.Lock()
	if c.state != domain.StateIdle || c.inCycle {
		c.mu.Unlock()
		return domain.ErrNotIdle
	}
	old := c.graph
	c.graph = g
	c.pending = nil
	dead := append(c.graveyard, slices.Collect(maps.Values(old.nodes))...)
	c.graveyard = nil
	c.mu.Unlock()

	c.bury(dead)
	prev := c.result.Swap(emptyResult(c.result.Load().Cycle))
	release(prev, emptyResult(0))
	return nil
}

// Outputs returns the buffers the node emitted on the last completed cycle.
func (c *Controller) Outputs(id string) ([]domain.Buffer, error) {
	c.mu.Lock()
	_, err := c.graph.node(id)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.result.Load().Outputs[id]), nil
}

// Snapshot returns a copy of the last completed cycle.
func (c *Controller) Snapshot() Result {
	res := c.result.Load()
	return Result{
		Cycle:    res.Cycle,
		Outputs:  maps.Clone(res.Outputs),
		Failures: maps.Clone(res.Failures),
	}
}

// Failures returns the failures of the last completed cycle keyed by node id.
func (c *Controller) Failures() map[string]*domain.ProcessorError {
	return maps.Clone(c.result.Load().Failures)
}

// ClearFailures forgets the failures of the last completed cycle.
func (c *Controller) ClearFailures() {
	for {
		old := c.result.Load()
		cleared := &Result{Cycle: old.Cycle, Outputs: old.Outputs, Failures: make(map[string]*domain.ProcessorError)}
		if c.result.CompareAndSwap(old, cleared) {
			return
		}
	}
}

// Close stops the loop, closes every processor and releases every buffer.
// The controller is left idle over an empty graph.
func (c *Controller) Close() error {
	c.Stop()
	c.Wait()
	return c.Replace(NewGraph())
}
