package dsl

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
)

// Builder manages the tree construction.
type Builder struct {
	nodes map[domain.Value]*NodeBuilder
	order []domain.Value
}

// New creates a new tree builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[domain.Value]*NodeBuilder),
	}
}

// Add creates a new node in the tree, at the root level until Under is called.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(value domain.Value) *NodeBuilder {
	if nb, ok := b.nodes[value]; ok {
		return nb
	}
	nb := &NodeBuilder{
		spec:    domain.NodeSpec{Value: value},
		builder: b,
	}
	b.nodes[value] = nb
	b.order = append(b.order, value)
	return nb
}

// Tree is the result of a build: the initial data plus a loader serving the
// children of every lazy node.
type Tree struct {
	Nodes  []domain.NodeSpec
	Loader *memory.Loader
}

// Build compiles the declared nodes. Children declared under a lazy node are not part
// of Nodes; they are served by Loader when the node is expanded.
func (b *Builder) Build() (*Tree, error) {
	children := make(map[domain.Value][]domain.Value)
	var roots []domain.Value
	for _, v := range b.order {
		nb := b.nodes[v]
		if !nb.hasParent {
			roots = append(roots, v)
			continue
		}
		if _, ok := b.nodes[nb.parent]; !ok {
			return nil, fmt.Errorf("node %q is under an undeclared parent: %w",
				v, &domain.IdentityError{Value: nb.parent, Err: domain.ErrNodeNotFound})
		}
		children[nb.parent] = append(children[nb.parent], v)
	}

	tree := &Tree{Loader: memory.NewLoader(nil)}
	seen := make(map[domain.Value]struct{}, len(b.nodes))
	tree.Nodes = b.specs(roots, children, tree.Loader, seen)

	if len(seen) != len(b.nodes) {
		for _, v := range b.order {
			if _, ok := seen[v]; !ok {
				return nil, &domain.IdentityError{Value: v, Err: domain.ErrCycleDetected}
			}
		}
	}
	return tree, nil
}

func (b *Builder) specs(values []domain.Value, children map[domain.Value][]domain.Value, loader *memory.Loader, seen map[domain.Value]struct{}) []domain.NodeSpec {
	out := make([]domain.NodeSpec, 0, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
		spec := b.nodes[v].spec
		kids, hasKids := children[v]
		switch {
		case spec.Lazy:
			loader.Set(v, b.specs(kids, children, loader, seen)...)
		case hasKids:
			spec.Children = b.specs(kids, children, loader, seen)
		}
		out = append(out, spec)
	}
	return out
}
