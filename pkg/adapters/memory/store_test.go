package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/cvflow/pkg/adapters/memory"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunGraphStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	doc := &domain.GraphDocument{
		Name:  "iso",
		Nodes: []domain.NodeSpec{{ID: "k", Type: "Kernel", Properties: map[string]any{"kernel": [][]float64{{1, 2}}}}},
	}
	require.NoError(t, store.Save(ctx, "iso", doc))

	doc.Nodes[0].Properties["kernel"].([][]float64)[0][0] = 99
	doc.Nodes[0].ID = "changed"

	loaded, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "k", loaded.Nodes[0].ID)
	assert.Equal(t, 1.0, loaded.Nodes[0].Properties["kernel"].([][]float64)[0][0])

	loaded.Nodes[0].ID = "mutated"
	again, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "k", again.Nodes[0].ID)
}
