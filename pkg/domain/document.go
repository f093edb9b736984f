package domain

import "fmt"

// GraphDocument is the portable form of a pipeline.
type GraphDocument struct {
	Name        string       `json:"name" yaml:"name"`
	Nodes       []NodeSpec   `json:"nodes" yaml:"nodes"`
	Connections []Connection `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// NodeSpec places one node of a registered type.
type NodeSpec struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
	// Category disambiguates types registered under the same id in different groups.
	Category   string         `json:"category,omitempty" yaml:"category,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Connection links a source port of one node to a target port of another.
type Connection struct {
	Source     string `json:"source" yaml:"source"`
	SourcePort int    `json:"source_port" yaml:"source_port"`
	Target     string `json:"target" yaml:"target"`
	TargetPort int    `json:"target_port" yaml:"target_port"`
}

func (c Connection) String() string {
	return fmt.Sprintf("%s[%d] -> %s[%d]", c.Source, c.SourcePort, c.Target, c.TargetPort)
}

// Clone returns a deep copy of the document. Matrix and list property
// values are copied; other values are shared.
func (d *GraphDocument) Clone() *GraphDocument {
	if d == nil {
		return nil
	}
	out := &GraphDocument{Name: d.Name}
	if d.Nodes != nil {
		out.Nodes = make([]NodeSpec, len(d.Nodes))
		for i, n := range d.Nodes {
			n.Properties = cloneProperties(n.Properties)
			out.Nodes[i] = n
		}
	}
	if d.Connections != nil {
		out.Connections = append([]Connection(nil), d.Connections...)
	}
	return out
}

func cloneProperties(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneProperties(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case [][]float64:
		out := make([][]float64, len(t))
		for i, row := range t {
			out[i] = append([]float64(nil), row...)
		}
		return out
	default:
		return v
	}
}
