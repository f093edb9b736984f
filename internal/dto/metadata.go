package dto

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
	"github.com/mitchellh/mapstructure"
)

// CategoryInfo is the serialisable view of a registry category.
type CategoryInfo struct {
	Name      string         `json:"name"`
	NodeTypes []NodeTypeInfo `json:"node_types,omitempty"`
	Actions   []ActionInfo   `json:"actions,omitempty"`
}

// NodeTypeInfo describes a node type without its processor factory.
type NodeTypeInfo struct {
	ID         string                 `json:"id"`
	Category   string                 `json:"category"`
	Title      string                 `json:"title"`
	Mode       domain.ArityMode       `json:"mode"`
	Targets    []domain.Handle        `json:"targets,omitempty"`
	Sources    []domain.Handle        `json:"sources,omitempty"`
	Properties []property.Declaration `json:"properties,omitempty"`
}

type ActionInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FailureInfo is the serialisable view of a *domain.ProcessorError.
type FailureInfo struct {
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
	Cycle    uint64 `json:"cycle"`
	Error    string `json:"error"`
	Panicked bool   `json:"panicked,omitempty"`
}

// OutputInfo carries one buffer. Value holds the buffer itself when it is
// JSON-encodable and its printed form otherwise.
type OutputInfo struct {
	Port  int    `json:"port"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// NodeArgs is the loosely typed form of a node placement, as received from
// tool calls and forms.
type NodeArgs struct {
	ID         string         `json:"id" mapstructure:"id"`
	Type       string         `json:"type" mapstructure:"type"`
	Category   string         `json:"category" mapstructure:"category"`
	Properties map[string]any `json:"properties" mapstructure:"properties"`
}

// ConnectionArgs is the loosely typed form of a connection.
type ConnectionArgs struct {
	Source     string `json:"source" mapstructure:"source"`
	SourcePort int    `json:"source_port" mapstructure:"source_port"`
	Target     string `json:"target" mapstructure:"target"`
	TargetPort int    `json:"target_port" mapstructure:"target_port"`
}

// Spec converts the arguments to a node spec.
func (a NodeArgs) Spec() domain.NodeSpec {
	return domain.NodeSpec{ID: a.ID, Type: a.Type, Category: a.Category, Properties: a.Properties}
}

// Connection converts the arguments to a connection.
func (a ConnectionArgs) Connection() domain.Connection {
	return domain.Connection{Source: a.Source, SourcePort: a.SourcePort, Target: a.Target, TargetPort: a.TargetPort}
}

// DecodeArgs decodes a loose argument map into out. Numbers given as
// floats or strings are accepted for integer fields.
func DecodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// Categories converts registry categories.
func Categories(cats []domain.Category) []CategoryInfo {
	out := make([]CategoryInfo, 0, len(cats))
	for _, c := range cats {
		info := CategoryInfo{Name: c.Name}
		for _, nt := range c.NodeTypes {
			info.NodeTypes = append(info.NodeTypes, NodeType(nt))
		}
		for _, a := range c.Actions {
			info.Actions = append(info.Actions, ActionInfo{ID: a.ID, Title: a.Title})
		}
		out = append(out, info)
	}
	return out
}

func NodeType(nt *domain.NodeType) NodeTypeInfo {
	return NodeTypeInfo{
		ID:         nt.ID,
		Category:   nt.ComponentCategory(),
		Title:      nt.Label(),
		Mode:       nt.Mode,
		Targets:    nt.Targets,
		Sources:    nt.Sources,
		Properties: nt.Properties,
	}
}

// Failures converts a failure map into a list ordered by node id.
func Failures(failures map[string]*domain.ProcessorError) []FailureInfo {
	out := make([]FailureInfo, 0, len(failures))
	for _, f := range failures {
		info := FailureInfo{NodeID: f.NodeID, NodeType: f.NodeType, Cycle: f.Cycle, Panicked: f.Panicked}
		if f.Err != nil {
			info.Error = f.Err.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Outputs converts the buffers of one node.
func Outputs(buffers []domain.Buffer) []OutputInfo {
	out := make([]OutputInfo, len(buffers))
	for i, b := range buffers {
		info := OutputInfo{Port: i, Type: fmt.Sprintf("%T", b), Value: b}
		if _, err := json.Marshal(b); err != nil {
			info.Value = fmt.Sprint(b)
		}
		out[i] = info
	}
	return out
}
