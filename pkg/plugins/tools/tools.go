// Package tools provides utility components: menu actions that drive the
// engine and a Print sink that writes buffers to a writer.
package tools

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
)

const (
	Name     = "tools"
	Category = "Tools"
)

// ClearFailures forgets the failures recorded by the engine.
var ClearFailures = &domain.MenuAction{
	ID:       "clear-failures",
	Category: Category,
	Title:    "Clear Failures",
	Run: func(_ context.Context, host domain.ActionHost) error {
		host.ClearFailures()
		return nil
	},
}

// StopPipeline asks a running pipeline to halt after the current cycle.
var StopPipeline = &domain.MenuAction{
	ID:       "stop",
	Category: Category,
	Title:    "Stop",
	Run: func(_ context.Context, host domain.ActionHost) error {
		host.Stop()
		return nil
	},
}

var printProps = []property.Declaration{
	{Name: "label", Kind: property.Text, Title: "Label"},
}

type printer struct {
	*property.Store
	mu *sync.Mutex
	w  io.Writer
}

func (p printer) Process(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
	if len(in) == 0 {
		return nil, nil
	}
	label, _ := p.Property("label")

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.w, "%v: %v\n", label, in[0]); err != nil {
		return nil, fmt.Errorf("failed to print: %w", err)
	}
	return nil, nil
}

// PrintType returns a sink node type that writes each incoming buffer to w.
func PrintType(w io.Writer) *domain.NodeType {
	var mu sync.Mutex
	return &domain.NodeType{
		ID:         "Print",
		Category:   Category,
		Title:      "Print",
		Mode:       domain.ArityFixed,
		Targets:    []domain.Handle{domain.In("src")},
		Properties: printProps,
		NewProcessor: func() domain.Processor {
			return printer{
				Store: property.NewStore(printProps, map[string]any{"label": "print"}),
				mu:    &mu,
				w:     w,
			}
		},
	}
}

// Plugin returns the descriptor of the tools plugin. Print writes to w.
func Plugin(w io.Writer) *domain.PluginDescriptor {
	return &domain.PluginDescriptor{
		Name:       Name,
		Components: []domain.Component{ClearFailures, StopPipeline, PrintType(w)},
	}
}
