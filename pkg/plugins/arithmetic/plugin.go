package arithmetic

import (
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/registry"
)

// Name identifies the plugin in load results.
const Name = "arithmetic"

// Plugin returns the descriptor of the arithmetic plugin. The node types are
// package-level values, so registering the plugin twice is harmless.
func Plugin() *domain.PluginDescriptor {
	return &domain.PluginDescriptor{
		Name: Name,
		Components: []domain.Component{
			Plus, Minus, Multiply, Division, Mul, Sum, Max,
			Kernel, GausKernel, Constant, NormalizeType,
		},
	}
}

// Register adds every node type of the plugin to r.
func Register(r *registry.Registry) {
	r.Ingest(domain.Loaded("builtin:"+Name, Plugin()))
}
