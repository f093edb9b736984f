package dsl

import (
	"maps"

	"github.com/aretw0/cvflow/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	spec    domain.NodeSpec
	builder *Builder
}

// Type sets the registered node type id.
func (n *NodeBuilder) Type(id string) *NodeBuilder {
	n.spec.Type = id
	return n
}

// In sets the category, for type ids registered in more than one.
func (n *NodeBuilder) In(category string) *NodeBuilder {
	n.spec.Category = category
	return n
}

// Set assigns an initial property value.
func (n *NodeBuilder) Set(name string, value any) *NodeBuilder {
	if n.spec.Properties == nil {
		n.spec.Properties = make(map[string]any)
	}
	n.spec.Properties[name] = value
	return n
}

// From connects port 0 of source to target port 0 of this node. Repeat it
// to feed an endless node; inputs arrive in call order.
func (n *NodeBuilder) From(source string) *NodeBuilder {
	return n.Input(0, source, 0)
}

// Input connects source[sourcePort] to this node's targetPort.
func (n *NodeBuilder) Input(targetPort int, source string, sourcePort int) *NodeBuilder {
	n.builder.Connect(source, sourcePort, n.spec.ID, targetPort)
	return n
}

// Build returns a copy of the node spec.
func (n *NodeBuilder) Build() domain.NodeSpec {
	spec := n.spec
	spec.Properties = maps.Clone(n.spec.Properties)
	return spec
}
