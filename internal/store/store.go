package store

import (
	"maps"
	"slices"

	"github.com/aretw0/canopy/pkg/domain"
)

// record is the canonical state of one node. Parent and children are identity
// references into the store, never pointers to other records.
type record struct {
	value    domain.Value
	label    string
	disabled bool
	mutex    bool
	data     map[string]any

	parent    domain.Value
	hasParent bool
	children  []domain.Value
	level     int
	load      domain.LoadState

	flags domain.Flags
}

// Store owns every node record of a tree. It is not safe for concurrent use;
// the runtime serializes access.
type Store struct {
	nodes map[domain.Value]*record
	roots []domain.Value
}

// New creates an empty store.
func New() *Store {
	return &Store{nodes: make(map[domain.Value]*record)}
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.nodes)
}

// Has reports whether v is in the store.
func (s *Store) Has(v domain.Value) bool {
	_, ok := s.nodes[v]
	return ok
}

// Get returns the projection of v.
func (s *Store) Get(v domain.Value) (domain.NodeView, bool) {
	r, ok := s.nodes[v]
	if !ok {
		return domain.NodeView{}, false
	}
	return r.view(), true
}

func (r *record) view() domain.NodeView {
	return domain.NodeView{
		Value:     r.value,
		Label:     r.label,
		Level:     r.level,
		Parent:    r.parent,
		Disabled:  r.disabled,
		Leaf:      r.isLeaf(),
		LoadState: r.load,
		Data:      maps.Clone(r.data),
		Flags:     r.flags,
	}
}

func (r *record) isLeaf() bool {
	return r.load == domain.LoadLeaf || (r.load == domain.LoadResolved && len(r.children) == 0)
}

func (r *record) expandable() bool {
	return r.load == domain.LoadResolved && len(r.children) > 0
}

func notFound(v domain.Value) error {
	return &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
}

// Roots returns the root identities in order.
func (s *Store) Roots() []domain.Value {
	return slices.Clone(s.roots)
}

// Children returns the known children of v in order.
func (s *Store) Children(v domain.Value) ([]domain.Value, error) {
	r, ok := s.nodes[v]
	if !ok {
		return nil, notFound(v)
	}
	return slices.Clone(r.children), nil
}

// HasChildren reports whether v has at least one known child.
func (s *Store) HasChildren(v domain.Value) bool {
	r, ok := s.nodes[v]
	return ok && len(r.children) > 0
}

// Parent returns the parent of v; ok is false for roots and unknown nodes.
func (s *Store) Parent(v domain.Value) (domain.Value, bool) {
	r, ok := s.nodes[v]
	if !ok || !r.hasParent {
		return "", false
	}
	return r.parent, true
}

// Siblings returns the identities sharing v's parent, v excluded.
func (s *Store) Siblings(v domain.Value) []domain.Value {
	r, ok := s.nodes[v]
	if !ok {
		return nil
	}
	all := s.roots
	if r.hasParent {
		all = s.nodes[r.parent].children
	}
	out := make([]domain.Value, 0, len(all))
	for _, sib := range all {
		if sib != v {
			out = append(out, sib)
		}
	}
	return out
}

// Ancestors returns the strict ancestors of v, nearest first.
func (s *Store) Ancestors(v domain.Value) ([]domain.Value, error) {
	r, ok := s.nodes[v]
	if !ok {
		return nil, notFound(v)
	}
	var out []domain.Value
	for r.hasParent {
		out = append(out, r.parent)
		r = s.nodes[r.parent]
	}
	return out, nil
}

// RootOf returns the root of the tree containing v.
func (s *Store) RootOf(v domain.Value) domain.Value {
	r, ok := s.nodes[v]
	if !ok {
		return v
	}
	for r.hasParent {
		r = s.nodes[r.parent]
	}
	return r.value
}

// Descendants returns the strict descendants of v in depth-first pre-order.
func (s *Store) Descendants(v domain.Value) ([]domain.Value, error) {
	r, ok := s.nodes[v]
	if !ok {
		return nil, notFound(v)
	}
	var out []domain.Value
	s.walk(r.children, func(r *record) bool {
		out = append(out, r.value)
		return true
	})
	return out, nil
}

// walk visits records in pre-order; fn returning false skips the record's subtree.
func (s *Store) walk(values []domain.Value, fn func(*record) bool) {
	for _, v := range values {
		r := s.nodes[v]
		if fn(r) {
			s.walk(r.children, fn)
		}
	}
}

// Walk visits every node in depth-first pre-order. Returning false from fn
// skips the node's descendants.
func (s *Store) Walk(fn func(domain.NodeView) bool) {
	s.walk(s.roots, func(r *record) bool {
		return fn(r.view())
	})
}

// Order returns every identity in depth-first pre-order.
func (s *Store) Order() []domain.Value {
	out := make([]domain.Value, 0, len(s.nodes))
	s.walk(s.roots, func(r *record) bool {
		out = append(out, r.value)
		return true
	})
	return out
}

// Visible returns the projection of every node reachable through expanded ancestors,
// in display order.
func (s *Store) Visible() []domain.NodeView {
	var out []domain.NodeView
	s.walk(s.roots, func(r *record) bool {
		out = append(out, r.view())
		return r.flags.Expanded
	})
	return out
}

// All returns the projection of every node in display order.
func (s *Store) All() []domain.NodeView {
	out := make([]domain.NodeView, 0, len(s.nodes))
	s.walk(s.roots, func(r *record) bool {
		out = append(out, r.view())
		return true
	})
	return out
}

// Flags returns the flags of v.
func (s *Store) Flags(v domain.Value) domain.Flags {
	if r, ok := s.nodes[v]; ok {
		return r.flags
	}
	return domain.Flags{}
}

// Disabled reports whether v is disabled.
func (s *Store) Disabled(v domain.Value) bool {
	r, ok := s.nodes[v]
	return ok && r.disabled
}

// LoadState returns the load state of v.
func (s *Store) LoadState(v domain.Value) domain.LoadState {
	if r, ok := s.nodes[v]; ok {
		return r.load
	}
	return ""
}

// Expandable reports whether v has resolved, non-empty children.
func (s *Store) Expandable(v domain.Value) bool {
	r, ok := s.nodes[v]
	return ok && r.expandable()
}

// ExpandMutex reports whether the children of v are mutually exclusive when expanding.
func (s *Store) ExpandMutex(v domain.Value) bool {
	r, ok := s.nodes[v]
	return ok && r.mutex
}
