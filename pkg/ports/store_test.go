package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
)

// MockStore is a minimal in-memory GraphStore used to check the contract suite itself.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.GraphDocument
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]domain.GraphDocument)}
}

func (m *MockStore) Save(_ context.Context, name string, doc *domain.GraphDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *doc
	copied.Nodes = append([]domain.NodeSpec(nil), doc.Nodes...)
	copied.Connections = append([]domain.Connection(nil), doc.Connections...)
	m.data[name] = copied
	return nil
}

func (m *MockStore) Load(_ context.Context, name string) (*domain.GraphDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[name]
	if !ok {
		return nil, domain.ErrPipelineNotFound
	}
	return &doc, nil
}

func (m *MockStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func (m *MockStore) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.data))
	for name := range m.data {
		names = append(names, name)
	}
	return names, nil
}

func TestGraphStore_Contract(t *testing.T) {
	ports.RunGraphStoreContract(t, NewMockStore())
}
