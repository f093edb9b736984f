package domain

import "fmt"

// Direction tells whether a handle receives (Target) or emits (Source) buffers.
type Direction int

const (
	Target Direction = iota
	Source
)

func (d Direction) String() string {
	switch d {
	case Target:
		return "target"
	case Source:
		return "source"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(data []byte) error {
	switch string(data) {
	case "target":
		*d = Target
	case "source":
		*d = Source
	default:
		return fmt.Errorf("unknown handle direction %q", data)
	}
	return nil
}

// Position is a layout hint for the editing canvas. It has no effect on execution.
type Position int

const (
	Left Position = iota
	Right
	Top
	Bottom
)

var positionNames = [...]string{Left: "left", Right: "right", Top: "top", Bottom: "bottom"}

func (p Position) String() string {
	if p < 0 || int(p) >= len(positionNames) {
		return fmt.Sprintf("position(%d)", int(p))
	}
	return positionNames[p]
}

func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Position) UnmarshalText(data []byte) error {
	for i, name := range positionNames {
		if name == string(data) {
			*p = Position(i)
			return nil
		}
	}
	return fmt.Errorf("unknown handle position %q", data)
}

// Handle is a port on a node type.
type Handle struct {
	Title     string    `json:"title" yaml:"title"`
	Direction Direction `json:"direction" yaml:"direction"`
	Position  Position  `json:"position" yaml:"position"`
}

// In declares a target handle on the left edge.
func In(title string) Handle {
	return Handle{Title: title, Direction: Target, Position: Left}
}

// Out declares a source handle on the right edge.
func Out(title string) Handle {
	return Handle{Title: title, Direction: Source, Position: Right}
}
