package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
	"github.com/stretchr/testify/assert"
)

func TestCatalogMarkdown(t *testing.T) {
	cats := []dto.CategoryInfo{
		{
			Name: "Arithmetic",
			NodeTypes: []dto.NodeTypeInfo{
				{
					ID:      "Sum",
					Mode:    domain.ArityEndless,
					Targets: []domain.Handle{domain.In("src")},
					Sources: []domain.Handle{domain.Out("out")},
				},
				{
					ID:         "Constant",
					Mode:       domain.ArityFixed,
					Sources:    []domain.Handle{domain.Out("out")},
					Properties: []property.Declaration{{Name: "value", Kind: property.Decimal}},
				},
			},
		},
		{
			Name:    "Tools",
			Actions: []dto.ActionInfo{{ID: "reset"}, {ID: "dump", Title: "Dump graph"}},
		},
	}

	md := CatalogMarkdown(cats)

	assert.Contains(t, md, "## Arithmetic")
	assert.Contains(t, md, "| `Sum` | src (any number) | out | - |")
	assert.Contains(t, md, "| `Constant` | - | out | value (decimal) |")
	assert.Contains(t, md, "## Tools")
	assert.Contains(t, md, "- `reset` reset")
	assert.Contains(t, md, "- `dump` Dump graph")
}

func TestCatalogMarkdown_Empty(t *testing.T) {
	assert.Contains(t, CatalogMarkdown(nil), "No plugins loaded.")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3\n")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.Contains(t, buf.String(), "| (__ \\ V /")
}

func TestPlain(t *testing.T) {
	out, err := Plain("# x")
	assert.NoError(t, err)
	assert.Equal(t, "# x", out)
}
