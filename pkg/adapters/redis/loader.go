package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/canopy/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Loader implements ports.ChildLoader over Redis. The children of a node are stored
// as a JSON array of node descriptions under "<prefix>children:<value>".
type Loader struct {
	client *backend.Client
	prefix string
}

// NewLoader creates a Redis-backed child loader.
func NewLoader(client *backend.Client, prefix string) *Loader {
	return &Loader{client: client, prefix: prefix}
}

func (l *Loader) key(v domain.Value) string {
	return l.prefix + "children:" + string(v)
}

// Publish stores the children of parent so later loads can fetch them.
func (l *Loader) Publish(ctx context.Context, parent domain.Value, children []domain.NodeSpec) error {
	if children == nil {
		children = []domain.NodeSpec{}
	}
	data, err := json.Marshal(children)
	if err != nil {
		return fmt.Errorf("failed to marshal children: %w", err)
	}
	return l.client.Set(ctx, l.key(parent), data, 0).Err()
}

// LoadChildren fetches the stored children of node.
func (l *Loader) LoadChildren(ctx context.Context, node domain.NodeView) ([]domain.NodeSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := l.client.Get(ctx, l.key(node.Value)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("no children published for %q", node.Value)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var children []domain.NodeSpec
	if err := json.Unmarshal(data, &children); err != nil {
		return nil, fmt.Errorf("failed to unmarshal children: %w", err)
	}
	return children, nil
}
