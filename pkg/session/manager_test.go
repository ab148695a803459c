package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.Snapshot
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Snapshot)
	}
	s.data[sessionID] = snapshot.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.data[sessionID]; ok {
		return snap.Clone(), nil
	}
	return nil, domain.ErrSnapshotNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Read-modify-write must not lose updates under the session lock.
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				snap, err := store.Load(ctx, id)
				if errors.Is(err, domain.ErrSnapshotNotFound) {
					snap = domain.NewSnapshot(id)
				} else if err != nil {
					return err
				}
				snap.Checked = append(snap.Checked, "x")
				return store.Save(ctx, id, snap)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.Checked, 10)
}

func TestManager_LoadOrStart(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := manager.LoadOrStart(ctx, id)
			assert.NoError(t, err)
			assert.NotNil(t, snap)
		}()
	}
	wg.Wait()

	snap, err := manager.Load(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, id, snap.SessionID)
	assert.Empty(t, snap.Checked)
}

func newTree(t *testing.T) *canopy.Tree {
	t.Helper()
	tree, err := canopy.New([]domain.NodeSpec{
		{Value: "t1", Children: []domain.NodeSpec{{Value: "1"}, {Value: "2"}}},
		{Value: "t2", Children: []domain.NodeSpec{{Value: "3"}}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func TestManager_PersistAndResume(t *testing.T) {
	ctx := context.Background()
	manager := session.NewManager(memory.NewStore())

	tree := newTree(t)
	_, err := tree.SetChecked("t1", true)
	require.NoError(t, err)
	require.NoError(t, tree.SetExpanded("t1", true))

	diff, err := manager.Persist(ctx, "s1", tree)
	require.NoError(t, err)
	require.NotNil(t, diff)
	assert.Equal(t, domain.Values("1", "2"), diff.Checked.Added)

	again, err := manager.Persist(ctx, "s1", tree)
	require.NoError(t, err)
	assert.Nil(t, again, "unchanged tree produces no diff")

	fresh := newTree(t)
	var events int
	fresh.OnAny(func(context.Context, *domain.Event) { events++ })

	snap, err := manager.Resume(ctx, "s1", fresh)
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, domain.Values("1", "2"), fresh.Checked())
	assert.Equal(t, domain.Values("t1"), fresh.Expanded())
	assert.Zero(t, events, "resume is silent")

	_, err = manager.Resume(ctx, "missing", fresh)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestManager_Bind(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	manager := session.NewManager(store)

	tree := newTree(t)
	unbind := manager.Bind(ctx, "bound", tree)

	_, err := tree.SetChecked("3", true)
	require.NoError(t, err)

	snap, err := store.Load(ctx, "bound")
	require.NoError(t, err)
	assert.Equal(t, domain.Values("3"), snap.Checked)

	unbind()
	_, err = tree.SetChecked("1", true)
	require.NoError(t, err)

	snap, err = store.Load(ctx, "bound")
	require.NoError(t, err)
	assert.Equal(t, domain.Values("3"), snap.Checked, "unbound tree is no longer persisted")
}

type countingLocker struct {
	mu      sync.Mutex
	locks   int
	unlocks int
	ttl     time.Duration
	fail    error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.locks++
	l.ttl = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()
	locker := &countingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))

	require.NoError(t, manager.Save(ctx, "s", domain.NewSnapshot("s")))
	_, err := manager.Load(ctx, "s")
	require.NoError(t, err)

	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)
	assert.Equal(t, time.Second, locker.ttl)

	locker.fail = errors.New("unavailable")
	err = manager.Save(ctx, "s", domain.NewSnapshot("s"))
	assert.ErrorContains(t, err, "distributed lock")
}
