package ports_test

import (
	"context"
	"sort"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// MockStore is an in-memory implementation of SnapshotStore for testing purposes.
type MockStore struct {
	data map[string]*domain.Snapshot
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Snapshot),
	}
}

func (m *MockStore) Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot) error {
	// Deep copy to simulate serialization
	m.data[sessionID] = snapshot.Clone()
	return nil
}

func (m *MockStore) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	snap, ok := m.data[sessionID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

func (m *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(m.data, sessionID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func TestSnapshotStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, NewMockStore())
}

func TestChildLoaderFunc(t *testing.T) {
	var got domain.Value
	loader := ports.ChildLoaderFunc(func(ctx context.Context, node domain.NodeView) ([]domain.NodeSpec, error) {
		got = node.Value
		return []domain.NodeSpec{{Value: node.Value + ".1"}}, nil
	})

	children, err := loader.LoadChildren(context.Background(), domain.NodeView{Value: "t1"})
	if err != nil {
		t.Fatalf("LoadChildren failed: %v", err)
	}
	if got != "t1" {
		t.Errorf("Expected loader to receive 't1', got %q", got)
	}
	if len(children) != 1 || children[0].Value != "t1.1" {
		t.Errorf("Expected single child 't1.1', got %v", children)
	}
}
