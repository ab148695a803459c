package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
)

// Loader implements ports.ChildLoader from an in-memory map of parent to children.
// Safe for concurrent use.
type Loader struct {
	mu       sync.RWMutex
	children map[domain.Value][]domain.NodeSpec
	delay    time.Duration
}

// NewLoader creates a loader serving the given children.
func NewLoader(children map[domain.Value][]domain.NodeSpec) *Loader {
	l := &Loader{children: make(map[domain.Value][]domain.NodeSpec, len(children))}
	for parent, specs := range children {
		l.children[parent] = specs
	}
	return l
}

// WithDelay makes every load wait d before answering, honoring cancellation.
func (l *Loader) WithDelay(d time.Duration) *Loader {
	l.delay = d
	return l
}

// Set registers (or replaces) the children of parent.
func (l *Loader) Set(parent domain.Value, children ...domain.NodeSpec) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.children[parent] = children
}

// LoadChildren returns the registered children of node.
func (l *Loader) LoadChildren(ctx context.Context, node domain.NodeView) ([]domain.NodeSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.delay):
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	specs, ok := l.children[node.Value]
	if !ok {
		return nil, fmt.Errorf("no children registered for %q", node.Value)
	}
	out := make([]domain.NodeSpec, len(specs))
	copy(out, specs)
	return out, nil
}

// Parents returns every parent with registered children.
func (l *Loader) Parents() []domain.Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Value, 0, len(l.children))
	for p := range l.children {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
