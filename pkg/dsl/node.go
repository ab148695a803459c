package dsl

import "github.com/aretw0/canopy/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	spec      domain.NodeSpec
	parent    domain.Value
	hasParent bool
	builder   *Builder
}

// Label sets the display text of the node.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.spec.Label = label
	return n
}

// Disabled excludes the node from cascades and direct checking.
func (n *NodeBuilder) Disabled() *NodeBuilder {
	n.spec.Disabled = true
	return n
}

// Under places the node as the last child of parent.
func (n *NodeBuilder) Under(parent domain.Value) *NodeBuilder {
	n.parent = parent
	n.hasParent = true
	return n
}

// Lazy marks the node as loadable. Its declared children are served by the built loader.
// A lazy node without declared children loads an empty list.
func (n *NodeBuilder) Lazy() *NodeBuilder {
	n.spec.Lazy = true
	return n
}

// Mutex makes the children of this node mutually exclusive when expanding.
func (n *NodeBuilder) Mutex() *NodeBuilder {
	n.spec.ExpandMutex = true
	return n
}

// Data attaches a host payload entry to the node.
func (n *NodeBuilder) Data(key string, value any) *NodeBuilder {
	if n.spec.Data == nil {
		n.spec.Data = make(map[string]any)
	}
	n.spec.Data[key] = value
	return n
}

// Child declares a new node under this one and returns its builder.
func (n *NodeBuilder) Child(value domain.Value) *NodeBuilder {
	return n.builder.Add(value).Under(n.spec.Value)
}

// Leaves declares several plain children under this node and returns the parent builder.
func (n *NodeBuilder) Leaves(values ...domain.Value) *NodeBuilder {
	for _, v := range values {
		n.Child(v)
	}
	return n
}
