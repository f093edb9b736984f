package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/cvflow/pkg/domain"
)

// GraphOverlay contains run state to visualize on the graph.
type GraphOverlay struct {
	// Failed lists nodes whose last invocation failed.
	Failed []string
	// Active lists nodes that produced outputs on the last cycle.
	Active []string
}

// OverlayFromFailures builds an overlay marking every failed node.
func OverlayFromFailures(failures map[string]*domain.ProcessorError) *GraphOverlay {
	overlay := &GraphOverlay{}
	for id := range failures {
		overlay.Failed = append(overlay.Failed, id)
	}
	return overlay
}

// GenerateMermaid produces a left-to-right Mermaid flowchart for a pipeline
// document. Nodes without incoming connections are drawn as stadiums and
// nodes without outgoing connections as subroutines. Edge labels show the
// port pair when either index is non-zero.
func GenerateMermaid(doc *domain.GraphDocument, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	if doc == nil {
		return sb.String()
	}

	incoming := make(map[string]bool)
	outgoing := make(map[string]bool)
	for _, c := range doc.Connections {
		outgoing[c.Source] = true
		incoming[c.Target] = true
	}

	for _, node := range doc.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case !incoming[node.ID] && outgoing[node.ID]:
			opener, closer = "([", "])"
		case incoming[node.ID] && !outgoing[node.ID]:
			opener, closer = "[[", "]]"
		}

		fmt.Fprintf(&sb, "    %s%s\"%s<br/><small>%s</small>\"%s\n",
			safeID, opener, escapeLabel(node.ID), escapeLabel(node.Type), closer)
	}

	for _, c := range doc.Connections {
		arrow := "-->"
		if c.SourcePort != 0 || c.TargetPort != 0 {
			arrow = fmt.Sprintf("-- \"%d:%d\" -->", c.SourcePort, c.TargetPort)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(c.Source), arrow, sanitizeMermaidID(c.Target))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast regardless of theme.
		sb.WriteString("    classDef active fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:4px,color:#000;\n")

		writeClass(&sb, "active", overlay.Active)
		writeClass(&sb, "failed", overlay.Failed)
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, class string, ids []string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
	}
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
