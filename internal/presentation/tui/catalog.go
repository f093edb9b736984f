package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/pkg/domain"
)

// CatalogMarkdown lists every category with its node types and actions.
func CatalogMarkdown(cats []dto.CategoryInfo) string {
	var sb strings.Builder
	sb.WriteString("# Node types\n")
	if len(cats) == 0 {
		sb.WriteString("\nNo plugins loaded.\n")
		return sb.String()
	}

	for _, c := range cats {
		fmt.Fprintf(&sb, "\n## %s\n", c.Name)
		if len(c.NodeTypes) > 0 {
			sb.WriteString("\n| Type | Inputs | Outputs | Properties |\n|---|---|---|---|\n")
			for _, nt := range c.NodeTypes {
				fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n",
					nt.ID, inputs(nt), handles(nt.Sources), properties(nt))
			}
		}
		if len(c.Actions) > 0 {
			sb.WriteString("\nActions:\n\n")
			for _, a := range c.Actions {
				title := a.Title
				if title == "" {
					title = a.ID
				}
				fmt.Fprintf(&sb, "- `%s` %s\n", a.ID, title)
			}
		}
	}
	return sb.String()
}

func inputs(nt dto.NodeTypeInfo) string {
	s := handles(nt.Targets)
	if nt.Mode == domain.ArityEndless && len(nt.Targets) > 0 {
		s += " (any number)"
	}
	return s
}

func handles(hs []domain.Handle) string {
	if len(hs) == 0 {
		return "-"
	}
	titles := make([]string, len(hs))
	for i, h := range hs {
		titles[i] = h.Title
	}
	return strings.Join(titles, ", ")
}

func properties(nt dto.NodeTypeInfo) string {
	if len(nt.Properties) == 0 {
		return "-"
	}
	parts := make([]string, len(nt.Properties))
	for i, d := range nt.Properties {
		parts[i] = fmt.Sprintf("%s (%s)", d.Name, d.Kind)
	}
	return strings.Join(parts, ", ")
}
