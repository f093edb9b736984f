package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/cvflow/pkg/property"
)

// DefaultCategory groups components registered without a category.
const DefaultCategory = "ThirdParty"

// ArityMode governs how many connections a node's target ports accept and
// how the engine assembles its inputs.
type ArityMode int

const (
	// ArityFixed declares N >= 1 target ports, one connection each.
	ArityFixed ArityMode = iota
	// ArityEndless declares one representative target port that accepts any
	// number of connections. Inputs arrive in connection order.
	ArityEndless
	// ArityOutputOnly declares no target ports.
	ArityOutputOnly
)

func (m ArityMode) String() string {
	switch m {
	case ArityFixed:
		return "fixed"
	case ArityEndless:
		return "endless"
	case ArityOutputOnly:
		return "output_only"
	default:
		return fmt.Sprintf("arity(%d)", int(m))
	}
}

func (m ArityMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ArityMode) UnmarshalText(data []byte) error {
	for _, candidate := range []ArityMode{ArityFixed, ArityEndless, ArityOutputOnly} {
		if candidate.String() == string(data) {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown arity mode %q", data)
}

// Component is anything a plugin can contribute to the registry:
// a *NodeType or a *MenuAction.
type Component interface {
	ComponentID() string
	ComponentCategory() string
	component()
}

// NodeType is the immutable template for graph nodes.
// Once registered it must not be mutated; register a new descriptor instead.
type NodeType struct {
	ID       string
	Category string
	Title    string
	Mode     ArityMode
	// Targets and Sources are positional: index i of a processor's inputs and
	// outputs corresponds to Targets[i] and Sources[i].
	Targets      []Handle
	Sources      []Handle
	Properties   []property.Declaration
	NewProcessor ProcessorFactory
}

func (t *NodeType) ComponentID() string { return t.ID }

func (t *NodeType) ComponentCategory() string {
	if t.Category == "" {
		return DefaultCategory
	}
	return t.Category
}

func (t *NodeType) component() {}

// Label returns the display title, falling back to the id.
func (t *NodeType) Label() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}

// Validate checks the descriptor is well formed. All problems are joined.
func (t *NodeType) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidNodeType)
	}
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if t.NewProcessor == nil {
		errs = append(errs, errors.New("processor factory is required"))
	}

	switch t.Mode {
	case ArityFixed:
		if len(t.Targets) == 0 {
			errs = append(errs, errors.New("fixed arity requires at least one target port"))
		}
	case ArityEndless:
		if len(t.Targets) != 1 {
			errs = append(errs, fmt.Errorf("endless arity requires exactly one target port, got %d", len(t.Targets)))
		}
	case ArityOutputOnly:
		if len(t.Targets) != 0 {
			errs = append(errs, fmt.Errorf("output-only arity allows no target ports, got %d", len(t.Targets)))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown arity mode %d", int(t.Mode)))
	}

	for i, h := range t.Targets {
		if h.Direction != Target {
			errs = append(errs, fmt.Errorf("target port %d has direction %s", i, h.Direction))
		}
	}
	for i, h := range t.Sources {
		if h.Direction != Source {
			errs = append(errs, fmt.Errorf("source port %d has direction %s", i, h.Direction))
		}
	}

	seen := make(map[string]bool, len(t.Properties))
	for _, d := range t.Properties {
		switch {
		case d.Name == "":
			errs = append(errs, errors.New("property with empty name"))
		case seen[d.Name]:
			errs = append(errs, fmt.Errorf("duplicate property %q", d.Name))
		case !d.Kind.Valid():
			errs = append(errs, fmt.Errorf("property %q has invalid kind", d.Name))
		}
		seen[d.Name] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidNodeType, t.ID, errors.Join(errs...))
	}
	return nil
}

// ActionHost is the surface a menu action can drive.
type ActionHost interface {
	Stop()
	ClearFailures()
}

// MenuAction is a utility command listed next to node types but never placed in a graph.
type MenuAction struct {
	ID       string
	Category string
	Title    string
	Run      func(ctx context.Context, host ActionHost) error
}

func (a *MenuAction) ComponentID() string { return a.ID }

func (a *MenuAction) ComponentCategory() string {
	if a.Category == "" {
		return DefaultCategory
	}
	return a.Category
}

func (a *MenuAction) component() {}

// Label returns the display title, falling back to the id.
func (a *MenuAction) Label() string {
	if a.Title != "" {
		return a.Title
	}
	return a.ID
}

// Category is one group of the menu view: node types and actions in registration order.
type Category struct {
	Name      string
	NodeTypes []*NodeType
	Actions   []*MenuAction
}
