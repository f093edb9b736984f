package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/internal/presentation/graph"
	"github.com/aretw0/cvflow/internal/presentation/tui"
)

// Graph writes the target pipeline as a Mermaid diagram. With check set the
// pipeline is imported and stepped once and failing nodes are highlighted.
func Graph(ctx context.Context, opts Options, target string, check bool, out io.Writer) error {
	b, err := openStore(opts)
	if err != nil {
		return err
	}
	defer b.close()

	doc, err := resolveDocument(ctx, target, b.store)
	if err != nil {
		return err
	}

	var overlay *graph.GraphOverlay
	if check {
		eng, err := createEngine(ctx, opts, logging.NewNop(), io.Discard)
		if err != nil {
			return err
		}
		defer eng.Close()
		if err := eng.Import(doc); err != nil {
			return fmt.Errorf("pipeline %q: %w", target, err)
		}
		if err := eng.Step(ctx); err != nil {
			return err
		}
		overlay = graph.OverlayFromFailures(eng.Failures())
	}

	_, err = io.WriteString(out, graph.GenerateMermaid(doc, overlay))
	return err
}

// Nodes writes the catalog of registered node types. It is rendered with
// glamour on a terminal, as plain markdown elsewhere, or as JSON.
func Nodes(ctx context.Context, opts Options, asJSON bool, out io.Writer) error {
	eng, err := createEngine(ctx, opts, createLogger(opts), io.Discard)
	if err != nil {
		return err
	}
	defer eng.Close()

	cats := dto.Categories(eng.Categories())
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cats)
	}

	render := tui.Plain
	if isTerminal(out) {
		render = tui.NewRenderer(100)
	}
	text, err := render(tui.CatalogMarkdown(cats))
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, text)
	return err
}
