package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/schema"
)

// Loader implements ports.ChildLoader over a directory: the children of node v are
// read from "<dir>/<v>.yaml" (or .yml, .json), in the data file format.
type Loader struct {
	Dir string
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

var extensions = []string{".yaml", ".yml", ".json"}

// LoadChildren reads and decodes the children file of node.
func (l *Loader) LoadChildren(ctx context.Context, node domain.NodeView) ([]domain.NodeSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := string(node.Value)
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("node %q cannot be mapped to a file", node.Value)
	}

	for _, ext := range extensions {
		data, err := os.ReadFile(filepath.Join(l.Dir, name+ext))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read children of %q: %w", node.Value, err)
		}
		children, err := schema.ParseNodes(data)
		if err != nil {
			return nil, fmt.Errorf("children of %q: %w", node.Value, err)
		}
		if children == nil {
			children = []domain.NodeSpec{}
		}
		return children, nil
	}
	return nil, fmt.Errorf("no children file for %q in %s", node.Value, l.Dir)
}
