package property

import (
	"fmt"
	"strings"
)

// Kind enumerates the value shapes a property can hold.
type Kind int

const (
	Text Kind = iota
	Integer
	Decimal
	Boolean
	Choice
	MultiChoice
	BooleanMatrix
	IntMatrix
	DoubleMatrix
)

var kindNames = [...]string{
	Text:          "text",
	Integer:       "integer",
	Decimal:       "decimal",
	Boolean:       "boolean",
	Choice:        "choice",
	MultiChoice:   "multichoice",
	BooleanMatrix: "boolean_matrix",
	IntMatrix:     "int_matrix",
	DoubleMatrix:  "double_matrix",
}

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// IsMatrix reports whether the kind holds a 2-D grid.
func (k Kind) IsMatrix() bool {
	return k == BooleanMatrix || k == IntMatrix || k == DoubleMatrix
}

// ParseKind converts a kind name to a Kind. Matching is case-insensitive.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range kindNames {
		if candidate == n {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported property kind: %s", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid property kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(data []byte) error {
	parsed, err := ParseKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Declaration describes one configurable field of a node type.
type Declaration struct {
	Name  string `json:"name" yaml:"name"`
	Kind  Kind   `json:"kind" yaml:"kind"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// Options restricts Choice and MultiChoice values. Empty means any string.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Label returns the display title, falling back to the name.
func (d Declaration) Label() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Find returns the declaration with the given name.
func Find(decls []Declaration, name string) (Declaration, bool) {
	for _, d := range decls {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}
