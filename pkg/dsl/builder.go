package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
)

// Builder manages the document construction. Nodes keep insertion order.
type Builder struct {
	name        string
	order       []string
	nodes       map[string]*NodeBuilder
	connections []domain.Connection
}

// New creates a new document builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the document.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		spec:    domain.NodeSpec{ID: id},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Connect links source[sourcePort] to target[targetPort].
func (b *Builder) Connect(source string, sourcePort int, target string, targetPort int) *Builder {
	b.connections = append(b.connections, domain.Connection{
		Source:     source,
		SourcePort: sourcePort,
		Target:     target,
		TargetPort: targetPort,
	})
	return b
}

// Build checks the document's references and returns it. Type and port
// checks against the registry happen when the document is imported.
func (b *Builder) Build() (*domain.GraphDocument, error) {
	var errs []error
	doc := &domain.GraphDocument{Name: b.name}

	for _, id := range b.order {
		nb := b.nodes[id]
		if id == "" {
			errs = append(errs, errors.New("node with empty id"))
		}
		if nb.spec.Type == "" {
			errs = append(errs, fmt.Errorf("node %q has no type", id))
		}
		doc.Nodes = append(doc.Nodes, nb.Build())
	}

	for _, c := range b.connections {
		for _, end := range []string{c.Source, c.Target} {
			if _, ok := b.nodes[end]; !ok {
				errs = append(errs, fmt.Errorf("connection %s references unknown node %q", c, end))
			}
		}
		if c.SourcePort < 0 || c.TargetPort < 0 {
			errs = append(errs, fmt.Errorf("connection %s has a negative port", c))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid pipeline %q: %w", b.name, errors.Join(errs...))
	}
	doc.Connections = append(doc.Connections, b.connections...)
	return doc, nil
}

// Apply builds the document and imports it into p.
func (b *Builder) Apply(p ports.Pipeline) error {
	doc, err := b.Build()
	if err != nil {
		return err
	}
	return p.Import(doc)
}
