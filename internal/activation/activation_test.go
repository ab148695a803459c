package activation

import (
	"testing"

	"github.com/aretw0/canopy/internal/store"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, multiple bool) *Engine {
	t.Helper()
	s := store.New()
	_, err := s.Replace([]domain.NodeSpec{
		{Value: "t1", Children: []domain.NodeSpec{{Value: "t1.1"}}},
		{Value: "t2"},
	})
	require.NoError(t, err)
	return New(s, multiple)
}

func TestSet_Exclusive(t *testing.T) {
	e := setup(t, false)

	changed, err := e.Set("t1", true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = e.Set("t2", true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.Values("t2"), e.Value())

	changed, err = e.Set("t2", true)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = e.Set("t2", false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, e.Value())
}

func TestSet_Multiple(t *testing.T) {
	e := setup(t, true)

	_, err := e.Set("t2", true)
	require.NoError(t, err)
	_, err = e.Set("t1.1", true)
	require.NoError(t, err)
	assert.Equal(t, domain.Values("t1.1", "t2"), e.Value())

	_, err = e.Set("t2", false)
	require.NoError(t, err)
	assert.Equal(t, domain.Values("t1.1"), e.Value())
}

func TestSet_NotFound(t *testing.T) {
	e := setup(t, false)
	_, err := e.Set("nope", true)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestReplace(t *testing.T) {
	t.Run("Exclusive Keeps Last Known", func(t *testing.T) {
		e := setup(t, false)
		assert.True(t, e.Replace(domain.Values("t1", "t2", "ghost")))
		assert.Equal(t, domain.Values("t2"), e.Value())
		assert.False(t, e.Replace(domain.Values("t2")))
	})

	t.Run("Multiple", func(t *testing.T) {
		e := setup(t, true)
		assert.True(t, e.Replace(domain.Values("t2", "t1")))
		assert.Equal(t, domain.Values("t1", "t2"), e.Value())
		assert.True(t, e.Replace(nil))
		assert.Empty(t, e.Value())
	})
}
