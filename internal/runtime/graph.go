package runtime

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
	"github.com/google/uuid"
)

// node is a placed instance of a node type with its bound processor.
type node struct {
	id   string
	typ  *domain.NodeType
	proc domain.Processor
	seq  uint64 // insertion index, breaks ties in the topological order
}

// Graph holds node instances and their connections.
// It is not safe for concurrent use; the Controller serializes access.
type Graph struct {
	nodes   map[string]*node
	conns   []domain.Connection // creation order
	nextSeq uint64
	order   []string // cached topological order, nil when stale
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode instantiates a processor for nt and places it under id.
// An empty id is replaced with a generated one.
func (g *Graph) AddNode(id string, nt *domain.NodeType) (string, error) {
	if err := nt.Validate(); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := g.nodes[id]; exists {
		return "", fmt.Errorf("%w: %s", domain.ErrDuplicateNode, id)
	}
	proc := nt.NewProcessor()
	if proc == nil {
		return "", fmt.Errorf("%w %q: factory returned nil processor", domain.ErrInvalidNodeType, nt.ID)
	}
	g.nodes[id] = &node{id: id, typ: nt, proc: proc, seq: g.nextSeq}
	g.nextSeq++
	g.order = nil
	return id, nil
}

// Discard closes the processors of a graph that was never handed to a Controller.
func (g *Graph) Discard() error {
	var errs []error
	for _, n := range g.nodes {
		if closer, ok := n.proc.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	g.nodes = make(map[string]*node)
	g.conns = nil
	g.order = nil
	return errors.Join(errs...)
}

// RemoveNode drops a node and every connection touching it.
// The removed node is returned so its processor can be released.
func (g *Graph) RemoveNode(id string) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	delete(g.nodes, id)
	g.conns = slices.DeleteFunc(g.conns, func(c domain.Connection) bool {
		return c.Source == id || c.Target == id
	})
	g.order = nil
	return n, nil
}

// node returns the instance with the given id.
func (g *Graph) node(id string) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// SetProperty validates value against the node type's declaration and writes it
// to the node's processor. An invalid value leaves the prior value in place.
func (g *Graph) SetProperty(id, name string, value any) error {
	n, conf, err := g.checkProperty(id, name, value)
	if err != nil {
		return err
	}
	if err := conf.SetProperty(name, value); err != nil {
		return fmt.Errorf("node %s: %w", n.id, err)
	}
	return nil
}

func (g *Graph) checkProperty(id, name string, value any) (*node, domain.Configurable, error) {
	n, err := g.node(id)
	if err != nil {
		return nil, nil, err
	}
	conf, ok := n.proc.(domain.Configurable)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrNotConfigurable, id)
	}
	decl, ok := property.Find(n.typ.Properties, name)
	if !ok {
		return nil, nil, &property.ValidationError{Key: name, Reason: "not declared", Value: value}
	}
	if err := property.Validate(decl, value); err != nil {
		return nil, nil, err
	}
	return n, conf, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Connections returns the connections in creation order.
func (g *Graph) Connections() []domain.Connection {
	return slices.Clone(g.conns)
}

// Connect adds c after checking ports, arity and acyclicity.
// A rejected connection leaves the graph unchanged.
func (g *Graph) Connect(c domain.Connection) error {
	src, err := g.node(c.Source)
	if err != nil {
		return err
	}
	dst, err := g.node(c.Target)
	if err != nil {
		return err
	}
	if c.SourcePort < 0 || c.SourcePort >= len(src.typ.Sources) {
		return fmt.Errorf("%w: %s has no source port %d", domain.ErrPortNotFound, c.Source, c.SourcePort)
	}
	if c.TargetPort < 0 || c.TargetPort >= len(dst.typ.Targets) {
		return fmt.Errorf("%w: %s has no target port %d", domain.ErrPortNotFound, c.Target, c.TargetPort)
	}

	for _, existing := range g.conns {
		if existing == c {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateConnection, c)
		}
		if dst.typ.Mode == domain.ArityFixed && existing.Target == c.Target && existing.TargetPort == c.TargetPort {
			return fmt.Errorf("%w: %s[%d] is fed by %s[%d]", domain.ErrPortOccupied,
				c.Target, c.TargetPort, existing.Source, existing.SourcePort)
		}
	}

	if path := g.pathBetween(c.Target, c.Source); path != nil {
		return &domain.CyclicGraphError{Connection: c, Path: append([]string{c.Source}, path...)}
	}

	g.conns = append(g.conns, c)
	g.order = nil
	return nil
}

// Disconnect removes c.
func (g *Graph) Disconnect(c domain.Connection) error {
	i := slices.Index(g.conns, c)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, c)
	}
	g.conns = slices.Delete(g.conns, i, i+1)
	g.order = nil
	return nil
}

// pathBetween returns the node ids of a downstream path from -> ... -> to,
// or nil when to is unreachable. Edges are followed in creation order.
func (g *Graph) pathBetween(from, to string) []string {
	visited := make(map[string]bool)
	var walk func(id string) []string
	walk = func(id string) []string {
		if id == to {
			return []string{id}
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		for _, c := range g.conns {
			if c.Source != id {
				continue
			}
			if rest := walk(c.Target); rest != nil {
				return append([]string{id}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

// Order returns the node ids in a topological order. Among nodes whose
// dependencies are satisfied, the earliest inserted comes first.
func (g *Graph) Order() []string {
	if g.order != nil {
		return g.order
	}

	indegree := make(map[string]int, len(g.nodes))
	for _, c := range g.conns {
		indegree[c.Target]++
	}

	ready := &seqHeap{}
	for id, n := range g.nodes {
		if indegree[id] == 0 {
			heap.Push(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*node)
		order = append(order, n.id)
		for _, c := range g.conns {
			if c.Source != n.id {
				continue
			}
			indegree[c.Target]--
			if indegree[c.Target] == 0 {
				heap.Push(ready, g.nodes[c.Target])
			}
		}
	}
	g.order = order
	return order
}

// seqHeap is a min-heap of nodes keyed by insertion index.
type seqHeap []*node

func (h seqHeap) Len() int           { return len(h) }
func (h seqHeap) Less(i, j int) bool { return h[i].seq < h[j].seq }
func (h seqHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *seqHeap) Push(x any)        { *h = append(*h, x.(*node)) }
func (h *seqHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// source references one upstream output: plan step index and source port.
type source struct {
	step int
	port int
}

// step is one node's entry in a cycle plan.
type step struct {
	id    string
	typ   *domain.NodeType
	proc  domain.Processor
	ports [][]source // per target port, in connection order
	depth int
}

// plan is an immutable snapshot of the graph taken at the start of a cycle.
type plan struct {
	steps  []step
	levels [][]int // step indexes grouped by dependency depth
}

func (g *Graph) plan() *plan {
	order := g.Order()
	index := make(map[string]int, len(order))
	p := &plan{steps: make([]step, len(order))}

	for i, id := range order {
		n := g.nodes[id]
		index[id] = i
		p.steps[i] = step{
			id:    id,
			typ:   n.typ,
			proc:  n.proc,
			ports: make([][]source, len(n.typ.Targets)),
		}
	}

	for _, c := range g.conns {
		to := &p.steps[index[c.Target]]
		from := index[c.Source]
		to.ports[c.TargetPort] = append(to.ports[c.TargetPort], source{step: from, port: c.SourcePort})
	}

	for i := range p.steps {
		st := &p.steps[i]
		for _, port := range st.ports {
			for _, src := range port {
				st.depth = max(st.depth, p.steps[src.step].depth+1)
			}
		}
		for len(p.levels) <= st.depth {
			p.levels = append(p.levels, nil)
		}
		p.levels[st.depth] = append(p.levels[st.depth], i)
	}
	return p
}

// inputs assembles a step's inputs from the outputs recorded so far this cycle.
// Ports are visited in declaration order and connections in creation order;
// an upstream that produced nothing at the referenced port contributes no entry.
func (st *step) inputs(outs [][]domain.Buffer) []domain.Buffer {
	var in []domain.Buffer
	for _, port := range st.ports {
		for _, src := range port {
			if up := outs[src.step]; src.port < len(up) && up[src.port] != nil {
				in = append(in, up[src.port])
			}
		}
	}
	return in
}
