package store

import (
	"errors"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []domain.NodeSpec {
	return []domain.NodeSpec{
		{Value: "t1", Label: "1", Children: []domain.NodeSpec{
			{Value: "t1.1"},
			{Value: "t1.2", Children: []domain.NodeSpec{{Value: "t1.2.1"}}},
		}},
		{Value: "t2", Lazy: true},
		{Value: "t3", Children: []domain.NodeSpec{}},
	}
}

func newSample(t *testing.T) *Store {
	t.Helper()
	s := New()
	_, err := s.Replace(sample())
	require.NoError(t, err)
	return s
}

func ptr(v domain.Value) *domain.Value { return &v }

func TestStore_Replace_Structure(t *testing.T) {
	s := newSample(t)

	assert.Equal(t, 6, s.Len())
	assert.Equal(t, domain.Values("t1", "t2", "t3"), s.Roots())
	assert.Equal(t, domain.Values("t1", "t1.1", "t1.2", "t1.2.1", "t2", "t3"), s.Order())

	anc, err := s.Ancestors("t1.2.1")
	require.NoError(t, err)
	assert.Equal(t, domain.Values("t1.2", "t1"), anc)

	desc, err := s.Descendants("t1")
	require.NoError(t, err)
	assert.Equal(t, domain.Values("t1.1", "t1.2", "t1.2.1"), desc)

	view, ok := s.Get("t1.2.1")
	require.True(t, ok)
	assert.Equal(t, 2, view.Level)
	assert.Equal(t, domain.Value("t1.2"), view.Parent)
	assert.True(t, view.Leaf)

	assert.Equal(t, domain.LoadUnresolved, s.LoadState("t2"))
	lazy, _ := s.Get("t2")
	assert.False(t, lazy.Leaf, "an unresolved lazy node is not a leaf")

	empty, _ := s.Get("t3")
	assert.True(t, empty.Leaf, "a resolved node without children is a leaf")
	assert.False(t, s.Expandable("t3"))

	assert.Equal(t, domain.Values("t1.1"), s.Siblings("t1.2"))
	assert.Equal(t, domain.Value("t1"), s.RootOf("t1.2.1"))
}

func TestStore_Visible(t *testing.T) {
	s := newSample(t)

	values := func() []domain.Value {
		var out []domain.Value
		for _, v := range s.Visible() {
			out = append(out, v.Value)
		}
		return out
	}
	assert.Equal(t, domain.Values("t1", "t2", "t3"), values())

	require.True(t, s.SetExpanded("t1", true))
	assert.Equal(t, domain.Values("t1", "t1.1", "t1.2", "t2", "t3"), values())

	require.True(t, s.SetExpanded("t1.2", true))
	require.True(t, s.SetExpanded("t1", false))
	assert.Equal(t, domain.Values("t1", "t2", "t3"), values(), "collapsed ancestors hide expanded descendants")
}

func TestStore_SetExpanded_RequiresResolvedChildren(t *testing.T) {
	s := newSample(t)

	assert.False(t, s.SetExpanded("t2", true), "unresolved")
	assert.False(t, s.SetExpanded("t1.1", true), "leaf")
	assert.False(t, s.SetExpanded("missing", true))
	assert.False(t, s.Flags("t2").Expanded)
}

func TestStore_Upsert(t *testing.T) {
	t.Run("Appends Children And Resolves Parent", func(t *testing.T) {
		s := newSample(t)
		added, err := s.Upsert(ptr("t2"), []domain.NodeSpec{{Value: "t2.1"}, {Value: "t2.2"}})
		require.NoError(t, err)

		assert.Equal(t, domain.Values("t2.1", "t2.2"), added)
		assert.Equal(t, domain.LoadResolved, s.LoadState("t2"))
		children, _ := s.Children("t2")
		assert.Equal(t, domain.Values("t2.1", "t2.2"), children)
		view, _ := s.Get("t2.1")
		assert.Equal(t, 1, view.Level)
	})

	t.Run("Existing Identity Keeps Flags", func(t *testing.T) {
		s := newSample(t)
		s.SetChecked("t1.1", true)

		added, err := s.Upsert(ptr("t1"), []domain.NodeSpec{{Value: "t1.1", Label: "renamed"}, {Value: "t1.3"}})
		require.NoError(t, err)

		assert.Equal(t, domain.Values("t1.3"), added)
		view, _ := s.Get("t1.1")
		assert.Equal(t, "renamed", view.Label)
		assert.True(t, view.Checked)
		children, _ := s.Children("t1")
		assert.Equal(t, domain.Values("t1.1", "t1.2", "t1.3"), children)
	})

	t.Run("Keeps Loading State Of Parent", func(t *testing.T) {
		s := newSample(t)
		s.SetLoadState("t2", domain.LoadLoading)
		_, err := s.Upsert(ptr("t2"), []domain.NodeSpec{{Value: "t2.1"}})
		require.NoError(t, err)
		assert.Equal(t, domain.LoadLoading, s.LoadState("t2"))
		assert.True(t, s.Flags("t2").Loading)
	})

	t.Run("Unknown Parent", func(t *testing.T) {
		s := newSample(t)
		_, err := s.Upsert(ptr("nope"), []domain.NodeSpec{{Value: "x"}})
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	})
}

func TestStore_IdentityErrors(t *testing.T) {
	tests := []struct {
		name   string
		parent *domain.Value
		specs  []domain.NodeSpec
		want   error
		value  domain.Value
	}{
		{
			name:   "Duplicate Within Batch",
			parent: ptr("t2"),
			specs:  []domain.NodeSpec{{Value: "x"}, {Value: "y", Children: []domain.NodeSpec{{Value: "x"}}}},
			want:   domain.ErrDuplicateIdentity,
			value:  "x",
		},
		{
			name:   "Existing Identity Under Other Parent",
			parent: ptr("t2"),
			specs:  []domain.NodeSpec{{Value: "new"}, {Value: "t1.1"}},
			want:   domain.ErrDuplicateIdentity,
			value:  "t1.1",
		},
		{
			name:   "Ancestor Nested Under Descendant",
			parent: ptr("t1.2.1"),
			specs:  []domain.NodeSpec{{Value: "t1"}},
			want:   domain.ErrCycleDetected,
			value:  "t1",
		},
		{
			name:  "Self Nesting",
			specs: []domain.NodeSpec{{Value: "z", Children: []domain.NodeSpec{{Value: "z"}}}},
			want:  domain.ErrCycleDetected,
			value: "z",
		},
		{
			name:  "Empty Identity",
			specs: []domain.NodeSpec{{Value: ""}},
			want:  domain.ErrEmptyIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSample(t)
			before := s.All()

			_, err := s.Upsert(tt.parent, tt.specs)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var idErr *domain.IdentityError
			require.True(t, errors.As(err, &idErr))
			if tt.value != "" {
				assert.Equal(t, tt.value, idErr.Value)
			}
			assert.Equal(t, before, s.All(), "failed batch must not mutate the store")
		})
	}
}

func TestStore_Replace(t *testing.T) {
	t.Run("Surviving Identities Keep Flags", func(t *testing.T) {
		s := newSample(t)
		s.SetChecked("t1.1", true)
		s.SetActivated("t3", true)

		removed, err := s.Replace([]domain.NodeSpec{
			{Value: "t1", Children: []domain.NodeSpec{{Value: "t1.1"}}},
			{Value: "t3"},
		})
		require.NoError(t, err)

		assert.Equal(t, domain.Values("t1.2", "t1.2.1", "t2"), removed)
		assert.True(t, s.Flags("t1.1").Checked)
		assert.True(t, s.Flags("t3").Activated)
		assert.False(t, s.Has("t1.2"))
	})

	t.Run("Lazy Re-description Keeps Cached Children", func(t *testing.T) {
		s := newSample(t)
		_, err := s.Upsert(ptr("t2"), []domain.NodeSpec{{Value: "t2.1"}})
		require.NoError(t, err)
		require.True(t, s.SetExpanded("t2", true))

		_, err = s.Replace(sample())
		require.NoError(t, err)

		assert.Equal(t, domain.LoadResolved, s.LoadState("t2"))
		assert.True(t, s.Has("t2.1"))
		assert.True(t, s.Flags("t2").Expanded)
		parent, _ := s.Parent("t2.1")
		assert.Equal(t, domain.Value("t2"), parent)
	})

	t.Run("Cached Children Dropped On Collision", func(t *testing.T) {
		s := newSample(t)
		_, err := s.Upsert(ptr("t2"), []domain.NodeSpec{{Value: "t2.1"}})
		require.NoError(t, err)

		_, err = s.Replace([]domain.NodeSpec{{Value: "t2", Lazy: true}, {Value: "t2.1"}})
		require.NoError(t, err)

		assert.Equal(t, domain.LoadUnresolved, s.LoadState("t2"))
		assert.Equal(t, domain.Values("t2", "t2.1"), s.Roots())
	})

	t.Run("Invalid Data Is Atomic", func(t *testing.T) {
		s := newSample(t)
		before := s.All()
		_, err := s.Replace([]domain.NodeSpec{{Value: "a"}, {Value: "a"}})
		assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
		assert.Equal(t, before, s.All())
	})
}

func TestStore_Remove(t *testing.T) {
	s := newSample(t)
	require.True(t, s.SetExpanded("t1", true))

	removed, err := s.Remove("t1.2")
	require.NoError(t, err)
	assert.Equal(t, domain.Values("t1.2", "t1.2.1"), removed)
	assert.False(t, s.Has("t1.2.1"))

	children, _ := s.Children("t1")
	assert.Equal(t, domain.Values("t1.1"), children)

	_, err = s.Remove("t1.1")
	require.NoError(t, err)
	assert.False(t, s.Flags("t1").Expanded, "a parent that lost its last child collapses")

	_, err = s.Remove("t3")
	require.NoError(t, err)
	assert.Equal(t, domain.Values("t1", "t2"), s.Roots())

	_, err = s.Remove("t3")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestStore_FlagWriters(t *testing.T) {
	s := newSample(t)

	s.SetIndeterminate("t1", true)
	assert.True(t, s.Flags("t1").Indeterminate)

	s.SetChecked("t1", true)
	assert.False(t, s.Flags("t1").Indeterminate, "checked clears indeterminate")

	s.SetIndeterminate("t1", true)
	assert.False(t, s.Flags("t1").Indeterminate, "checked node is never indeterminate")

	s.SetLoadState("t2", domain.LoadLoading)
	assert.True(t, s.Flags("t2").Loading)
	s.SetLoadState("t2", domain.LoadUnresolved)
	assert.False(t, s.Flags("t2").Loading)
}

func TestStore_DataIsCopied(t *testing.T) {
	payload := map[string]any{"owner": "ops"}
	s := New()
	_, err := s.Replace([]domain.NodeSpec{{Value: "n", Data: payload}})
	require.NoError(t, err)

	payload["owner"] = "changed by caller"
	view, ok := s.Get("n")
	require.True(t, ok)
	assert.Equal(t, "ops", view.Data["owner"])

	view.Data["owner"] = "changed by reader"
	view.Data["extra"] = true
	again, _ := s.Get("n")
	assert.Equal(t, map[string]any{"owner": "ops"}, again.Data)
}
