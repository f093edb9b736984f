package dsl_test

import (
	"context"
	"io"
	"testing"

	"github.com/aretw0/cvflow"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/dsl"
	"github.com/aretw0/cvflow/pkg/plugins/arithmetic"
	"github.com/aretw0/cvflow/pkg/plugins/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Document(t *testing.T) {
	b := dsl.New("masked")

	b.Add("a").Type("Constant").Set("value", 4.0)
	b.Add("b").Type("Constant").Set("value", 1.0)
	b.Add("mask").Type("Constant").Set("value", 1.0)
	b.Add("minus").Type("-").In(arithmetic.Category).
		Input(0, "a", 0).
		Input(1, "b", 0).
		Input(2, "mask", 0)

	doc, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "masked", doc.Name)
	require.Len(t, doc.Nodes, 4)
	assert.Equal(t, []string{"a", "b", "mask", "minus"}, []string{doc.Nodes[0].ID, doc.Nodes[1].ID, doc.Nodes[2].ID, doc.Nodes[3].ID})
	assert.Equal(t, arithmetic.Category, doc.Nodes[3].Category)
	assert.Equal(t, 4.0, doc.Nodes[0].Properties["value"])
	assert.Equal(t, []domain.Connection{
		{Source: "a", Target: "minus"},
		{Source: "b", Target: "minus", TargetPort: 1},
		{Source: "mask", Target: "minus", TargetPort: 2},
	}, doc.Connections)
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := dsl.New("p")
	b.Add("n").Type("Sum")
	b.Add("n").Set("x", 1)

	doc, err := b.Build()
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "Sum", doc.Nodes[0].Type)
	assert.Equal(t, 1, doc.Nodes[0].Properties["x"])
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *dsl.Builder)
		want  string
	}{
		{"missing type", func(b *dsl.Builder) { b.Add("n") }, `node "n" has no type`},
		{"unknown source", func(b *dsl.Builder) { b.Add("n").Type("Sum").From("ghost") }, `unknown node "ghost"`},
		{"negative port", func(b *dsl.Builder) {
			b.Add("a").Type("Constant")
			b.Add("n").Type("Sum").Input(-1, "a", 0)
		}, "negative port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New("bad")
			tt.build(b)
			_, err := b.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuilder_BuildIsolatesProperties(t *testing.T) {
	b := dsl.New("p")
	b.Add("n").Type("Constant").Set("value", 1.0)

	doc, err := b.Build()
	require.NoError(t, err)
	doc.Nodes[0].Properties["value"] = 9.0

	again, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Nodes[0].Properties["value"])
}

func TestBuilder_ApplyAndRun(t *testing.T) {
	ctx := context.Background()
	eng, err := cvflow.New(ctx, cvflow.WithPluginLoader(builtin.New(builtin.WithOutput(io.Discard))))
	require.NoError(t, err)
	defer eng.Close()

	b := dsl.New("sum")
	b.Add("x").Type("Constant").Set("value", 2.0)
	b.Add("y").Type("Constant").Set("value", 5.0)
	b.Add("total").Type("Sum").From("x").From("y")

	require.NoError(t, b.Apply(eng))
	require.NoError(t, eng.Step(ctx))

	out, err := eng.Outputs("total")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{7}, out[0].(*arithmetic.Mat).Data)
}
