package selection

import (
	"errors"
	"testing"

	"github.com/aretw0/canopy/internal/store"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forest:
//
//	p
//	├── a
//	├── b
//	│   ├── b1
//	│   └── b2
//	└── d (disabled)
//	q
//	└── q1
func forest() []domain.NodeSpec {
	return []domain.NodeSpec{
		{Value: "p", Children: []domain.NodeSpec{
			{Value: "a"},
			{Value: "b", Children: []domain.NodeSpec{{Value: "b1"}, {Value: "b2"}}},
			{Value: "d", Disabled: true},
		}},
		{Value: "q", Children: []domain.NodeSpec{{Value: "q1"}}},
	}
}

func setup(t *testing.T, cfg Config) (*store.Store, *Engine) {
	t.Helper()
	s := store.New()
	_, err := s.Replace(forest())
	require.NoError(t, err)
	return s, New(s, cfg)
}

func assertInvariants(t *testing.T, s *store.Store, cascade bool) {
	t.Helper()
	for _, v := range s.Order() {
		f := s.Flags(v)
		assert.False(t, f.Checked && f.Indeterminate, "%s is checked and indeterminate", v)

		desc, _ := s.Descendants(v)
		checked := 0
		for _, d := range desc {
			if s.Flags(d).Checked {
				checked++
			} else if cascade && f.Checked && !s.Disabled(d) && !disabledAncestorBelow(s, d, v) {
				t.Errorf("%s is checked but enabled descendant %s is not", v, d)
			}
		}
		want := !f.Checked && checked > 0 && checked < len(desc)
		assert.Equal(t, want, f.Indeterminate, "indeterminate of %s", v)
	}
}

// disabledAncestorBelow reports whether a disabled node sits between top (exclusive) and d.
func disabledAncestorBelow(s *store.Store, d, top domain.Value) bool {
	anc, _ := s.Ancestors(d)
	for _, a := range anc {
		if a == top {
			return false
		}
		if s.Disabled(a) {
			return true
		}
	}
	return false
}

func TestSetChecked_CascadeDown(t *testing.T) {
	s, e := setup(t, Config{})

	res, err := e.SetChecked("p", true, true)
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, domain.Value("p"), res.Node.Value)
	assert.Equal(t, domain.Values("a", "b1", "b2"), res.Value)
	for _, v := range domain.Values("p", "a", "b", "b1", "b2") {
		assert.True(t, s.Flags(v).Checked, v)
	}
	assert.False(t, s.Flags("d").Checked, "disabled subtree untouched")
	assertInvariants(t, s, true)
}

func TestSetChecked_DerivesAncestors(t *testing.T) {
	s, e := setup(t, Config{})

	_, err := e.SetChecked("b1", true, true)
	require.NoError(t, err)
	assert.True(t, s.Flags("b").Indeterminate)
	assert.True(t, s.Flags("p").Indeterminate)
	assertInvariants(t, s, true)

	_, err = e.SetChecked("b2", true, true)
	require.NoError(t, err)
	assert.True(t, s.Flags("b").Checked)
	assert.False(t, s.Flags("b").Indeterminate)
	assert.True(t, s.Flags("p").Indeterminate)

	_, err = e.SetChecked("a", true, true)
	require.NoError(t, err)
	assert.True(t, s.Flags("p").Checked, "all enabled children checked")
	assert.False(t, s.Flags("p").Indeterminate)
	assertInvariants(t, s, true)

	_, err = e.SetChecked("b2", false, true)
	require.NoError(t, err)
	assert.False(t, s.Flags("p").Checked)
	assert.False(t, s.Flags("b").Checked)
	assert.True(t, s.Flags("p").Indeterminate)
	assertInvariants(t, s, true)
}

func TestSetChecked_SingleChildParent(t *testing.T) {
	s, e := setup(t, Config{})

	res, err := e.SetChecked("q1", true, true)
	require.NoError(t, err)

	assert.Equal(t, domain.Values("q1"), res.Value)
	assert.Equal(t, domain.Value("q1"), res.Node.Value)
	assert.True(t, s.Flags("q").Checked)
	assert.False(t, s.Flags("q").Indeterminate)
}

func TestSetChecked_WithoutCascade(t *testing.T) {
	t.Run("Child Still Derives Parent", func(t *testing.T) {
		s, e := setup(t, Config{})

		res, err := e.SetChecked("q1", true, false)
		require.NoError(t, err)
		assert.Equal(t, domain.Values("q1"), res.Value)
		assert.True(t, s.Flags("q").Checked, "sole child checked")
		assert.False(t, s.Flags("q").Indeterminate)
		assertInvariants(t, s, false)
	})

	t.Run("Parent Keeps Children", func(t *testing.T) {
		s, e := setup(t, Config{ValueMode: domain.ValueModeAll})

		res, err := e.SetChecked("b", true, false)
		require.NoError(t, err)
		assert.Equal(t, domain.Values("b"), res.Value)
		assert.False(t, s.Flags("b1").Checked)
		assert.False(t, s.Flags("p").Checked, "a is still unchecked")
		assert.True(t, s.Flags("p").Indeterminate)
		assertInvariants(t, s, false)
	})
}

func TestRecompute_KeepsUntouchedState(t *testing.T) {
	s, e := setup(t, Config{ValueMode: domain.ValueModeAll})
	_, err := e.SetChecked("b", true, false)
	require.NoError(t, err)

	q := domain.Value("q")
	_, err = s.Upsert(&q, []domain.NodeSpec{{Value: "q2"}})
	require.NoError(t, err)
	res := e.Recompute(domain.Values("q2"), nil)

	assert.False(t, res.Changed)
	assert.True(t, s.Flags("b").Checked, "b is outside the changed region")
	assert.False(t, s.Flags("b1").Checked)
	assert.False(t, s.Flags("q2").Checked, "q is unchecked, nothing to inherit")
	assertInvariants(t, s, false)
}

func TestSetChecked_Strict(t *testing.T) {
	s, e := setup(t, Config{CheckStrictly: true})

	res, err := e.SetChecked("b", true, true)
	require.NoError(t, err)

	assert.Equal(t, domain.Values("b"), res.Value)
	assert.False(t, s.Flags("b1").Checked)
	assert.True(t, s.Flags("p").Indeterminate, "indeterminate is derived in every mode")
	assertInvariants(t, s, false)
}

func TestValueModes(t *testing.T) {
	tests := []struct {
		mode domain.ValueMode
		want []domain.Value
	}{
		{domain.ValueModeOnlyLeaf, domain.Values("b1", "b2", "q1")},
		{domain.ValueModeParentFirst, domain.Values("b", "q")},
		{domain.ValueModeAll, domain.Values("b", "b1", "b2", "q", "q1")},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			_, e := setup(t, Config{ValueMode: tt.mode})
			_, err := e.SetChecked("b", true, true)
			require.NoError(t, err)
			_, err = e.SetChecked("q", true, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Value())
			assert.Equal(t, len(tt.want), e.Count())
		})
	}
}

func TestSetChecked_LimitExceeded(t *testing.T) {
	s, e := setup(t, Config{Max: 2})

	_, err := e.SetChecked("a", true, true)
	require.NoError(t, err)
	before := s.All()

	res, err := e.SetChecked("b", true, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)

	var limit *domain.LimitError
	require.True(t, errors.As(err, &limit))
	assert.Equal(t, 2, limit.Max)
	assert.Equal(t, 3, limit.Requested)

	assert.Equal(t, domain.Values("a"), res.Value)
	assert.Equal(t, before, s.All(), "rejected change must not mutate")

	_, err = e.SetChecked("b1", true, true)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Count())
}

func TestSetChecked_ShrinkingAllowedAboveMax(t *testing.T) {
	_, e := setup(t, Config{})
	_, err := e.SetChecked("p", true, true)
	require.NoError(t, err)

	e.SetMax(1)
	_, err = e.SetChecked("a", false, true)
	assert.NoError(t, err, "unchecking never exceeds the cap")
	assert.Equal(t, domain.Values("b1", "b2"), e.Value())
}

func TestSetChecked_NotFound(t *testing.T) {
	_, e := setup(t, Config{})
	_, err := e.SetChecked("zzz", true, true)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestSetValue(t *testing.T) {
	s, e := setup(t, Config{})
	_, err := e.SetChecked("a", true, true)
	require.NoError(t, err)

	res, unknown, err := e.SetValue(domain.Values("b", "ghost", "q1"))
	require.NoError(t, err)

	assert.Equal(t, domain.Values("ghost"), unknown)
	assert.Equal(t, domain.Values("b1", "b2", "q1"), res.Value)
	assert.False(t, s.Flags("a").Checked)
	assert.True(t, s.Flags("q").Checked)
	assert.Empty(t, res.Node.Value)
	assertInvariants(t, s, true)
}

func TestSetValue_UnchecksDisabled(t *testing.T) {
	s, e := setup(t, Config{ValueMode: domain.ValueModeAll})
	_, _, err := e.SetValue(domain.Values("d"))
	require.NoError(t, err)
	require.True(t, s.Flags("d").Checked, "a disabled node can be checked from outside")

	res, _, err := e.SetValue(nil)
	require.NoError(t, err)
	assert.Empty(t, res.Value)
	assert.False(t, s.Flags("d").Checked)

	res, _, err = e.SetValue(domain.Values("a"))
	require.NoError(t, err)
	assert.Equal(t, domain.Values("a"), res.Value)
	assertInvariants(t, s, true)
}

func TestSetValue_RespectsMax(t *testing.T) {
	s, e := setup(t, Config{Max: 2})
	before := s.All()

	_, _, err := e.SetValue(domain.Values("a", "b"))
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
	assert.Equal(t, before, s.All())
}

func TestRecompute_InheritsIntoNewChildren(t *testing.T) {
	s, e := setup(t, Config{})
	_, err := e.SetChecked("q", true, true)
	require.NoError(t, err)

	q := domain.Value("q")
	_, err = s.Upsert(&q, []domain.NodeSpec{{Value: "q2"}})
	require.NoError(t, err)

	res := e.Recompute(domain.Values("q2"), nil)
	assert.True(t, s.Flags("q2").Checked)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.Values("q1", "q2"), res.Value)
	assertInvariants(t, s, true)
}

func TestRecompute_AfterRemoval(t *testing.T) {
	s, e := setup(t, Config{})
	_, err := e.SetChecked("b1", true, true)
	require.NoError(t, err)

	_, err = s.Remove("b2")
	require.NoError(t, err)
	e.Recompute(nil, domain.Values("b"))

	assert.True(t, s.Flags("b").Checked, "remaining enabled children all checked")
	assertInvariants(t, s, true)
}

func TestInherit(t *testing.T) {
	t.Run("Cascades Checked Parent", func(t *testing.T) {
		s, e := setup(t, Config{})
		_, err := e.SetChecked("q", true, true)
		require.NoError(t, err)

		q := domain.Value("q")
		_, err = s.Upsert(&q, []domain.NodeSpec{{Value: "q2"}, {Value: "q3"}})
		require.NoError(t, err)

		res := e.Inherit("q", domain.Values("q2", "q3"))
		assert.Equal(t, domain.Values("q1", "q2", "q3"), res.Value)
		assert.Equal(t, domain.Value("q"), res.Node.Value)
	})

	t.Run("Falls Back When Cap Would Break", func(t *testing.T) {
		s, e := setup(t, Config{Max: 1})
		_, err := e.SetChecked("q", true, true)
		require.NoError(t, err)

		q := domain.Value("q")
		_, err = s.Upsert(&q, []domain.NodeSpec{{Value: "q2"}})
		require.NoError(t, err)

		res := e.Inherit("q", domain.Values("q2"))
		assert.LessOrEqual(t, len(res.Value), 1)
		assert.False(t, s.Flags("q2").Checked)
		assert.False(t, s.Flags("q").Checked)
		assert.True(t, s.Flags("q").Indeterminate)
		assertInvariants(t, s, true)
	})
}
