package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// ChildLoader defines how the engine fetches the children of a lazily loaded node.
// This allows the data source (HTTP, FS, Memory) to be decoupled from the engine.
type ChildLoader interface {
	// LoadChildren returns the ordered child descriptions of node.
	// The context is cancelled when the tree is closed; timeouts are the loader's concern.
	LoadChildren(ctx context.Context, node domain.NodeView) ([]domain.NodeSpec, error)
}

// ChildLoaderFunc adapts a function to ChildLoader.
type ChildLoaderFunc func(ctx context.Context, node domain.NodeView) ([]domain.NodeSpec, error)

// LoadChildren calls f.
func (f ChildLoaderFunc) LoadChildren(ctx context.Context, node domain.NodeView) ([]domain.NodeSpec, error) {
	return f(ctx, node)
}
