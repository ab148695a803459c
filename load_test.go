package canopy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTree = `
options:
  value_mode: parentFirst
  expand_level: 1
  checked: [t1]
nodes:
  - value: t1
    label: Node 1
    children:
      - value: "1"
      - value: "2"
  - value: t2
    children:
      - value: "3"
`

func TestOpen_AppliesFileOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTree), 0644))

	tree, err := canopy.Open(path)
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, []domain.Value{"t1"}, tree.Checked())
	assert.ElementsMatch(t, []domain.Value{"t1", "t2"}, tree.Expanded())
	assert.Equal(t, 5, tree.Len())
}

func TestOpen_CallerOptionsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTree), 0644))

	tree, err := canopy.Open(path, canopy.WithValueMode(domain.ValueModeOnlyLeaf))
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, []domain.Value{"1", "2"}, tree.Checked())
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := canopy.Open(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
