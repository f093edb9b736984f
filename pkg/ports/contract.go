package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGraphStoreContract verifies that a GraphStore implementation adheres to the
// interface contract.
func RunGraphStoreContract(t *testing.T, store GraphStore) {
	ctx := context.Background()
	name := "contract-" + time.Now().Format("20060102150405")

	sample := func(n string) *domain.GraphDocument {
		return &domain.GraphDocument{
			Name: n,
			Nodes: []domain.NodeSpec{
				{ID: "k", Type: "Kernel", Properties: map[string]any{"label": "edge"}},
				{ID: "s", Type: "Sum", Category: "Arithmetic"},
			},
			Connections: []domain.Connection{{Source: "k", SourcePort: 0, Target: "s", TargetPort: 0}},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		doc := sample(name)
		require.NoError(t, store.Save(ctx, name, doc))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, doc.Name, loaded.Name)
		require.Len(t, loaded.Nodes, 2)
		assert.Equal(t, "Kernel", loaded.Nodes[0].Type)
		assert.Equal(t, "Arithmetic", loaded.Nodes[1].Category)
		assert.Equal(t, "edge", loaded.Nodes[0].Properties["label"])
		assert.Equal(t, doc.Connections, loaded.Connections)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		doc := sample(name)
		doc.Nodes = doc.Nodes[:1]
		doc.Connections = nil
		require.NoError(t, store.Save(ctx, name, doc))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Len(t, loaded.Nodes, 1)
		assert.Empty(t, loaded.Connections)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, sample(name)))
		require.NoError(t, store.Delete(ctx, name))

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrPipelineNotFound, "Load after Delete should return ErrPipelineNotFound")
		assert.NoError(t, store.Delete(ctx, name), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := name+"-1", name+"-2"
		require.NoError(t, store.Save(ctx, id1, sample(id1)))
		require.NoError(t, store.Save(ctx, id2, sample(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, id1)
		assert.Contains(t, names, id2)
	})
}
