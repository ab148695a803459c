package store

import (
	"maps"
	"slices"

	"github.com/aretw0/canopy/pkg/domain"
)

// SetChecked writes the checked flag of v.
func (s *Store) SetChecked(v domain.Value, checked bool) {
	if r, ok := s.nodes[v]; ok {
		r.flags.Checked = checked
		if checked {
			r.flags.Indeterminate = false
		}
	}
}

// SetIndeterminate writes the indeterminate flag of v. A checked node is never indeterminate.
func (s *Store) SetIndeterminate(v domain.Value, indeterminate bool) {
	if r, ok := s.nodes[v]; ok {
		r.flags.Indeterminate = indeterminate && !r.flags.Checked
	}
}

// SetExpanded writes the expanded flag of v. Only nodes with resolved children may be expanded;
// the returned bool reports whether the flag now equals expanded.
func (s *Store) SetExpanded(v domain.Value, expanded bool) bool {
	r, ok := s.nodes[v]
	if !ok {
		return false
	}
	if expanded && !r.expandable() {
		return false
	}
	r.flags.Expanded = expanded
	return true
}

// SetActivated writes the activated flag of v.
func (s *Store) SetActivated(v domain.Value, activated bool) {
	if r, ok := s.nodes[v]; ok {
		r.flags.Activated = activated
	}
}

// SetLoadState moves v to a new load state and keeps the loading flag in sync.
func (s *Store) SetLoadState(v domain.Value, state domain.LoadState) {
	r, ok := s.nodes[v]
	if !ok {
		return
	}
	r.load = state
	r.flags.Loading = state == domain.LoadLoading
	r.normalize()
}

func (r *record) normalize() {
	if !r.expandable() {
		r.flags.Expanded = false
	}
	r.flags.Loading = r.load == domain.LoadLoading
	if r.flags.Checked {
		r.flags.Indeterminate = false
	}
}

// Upsert merges specs under parent (nil for the root level). Existing identities keep
// their flags and position; new identities are appended. Children listed in a spec are
// merged recursively. The batch is validated in full before anything is written.
// It returns the newly created identities in pre-order.
func (s *Store) Upsert(parent *domain.Value, specs []domain.NodeSpec) ([]domain.Value, error) {
	var (
		parentVal domain.Value
		hasParent bool
		level     int
		path      = make(map[domain.Value]struct{})
	)
	if parent != nil {
		p, ok := s.nodes[*parent]
		if !ok {
			return nil, notFound(*parent)
		}
		parentVal, hasParent, level = *parent, true, p.level+1
		path[p.value] = struct{}{}
		for p.hasParent {
			path[p.parent] = struct{}{}
			p = s.nodes[p.parent]
		}
	}

	v := validator{path: path, seen: make(map[domain.Value]struct{}), existing: s.nodes}
	if err := v.check(specs, parentVal, hasParent); err != nil {
		return nil, err
	}

	var added []domain.Value
	s.merge(specs, parentVal, hasParent, level, &added)
	if hasParent {
		// Inserting children resolves the parent.
		p := s.nodes[parentVal]
		if p.load != domain.LoadLoading {
			p.load = domain.LoadResolved
		}
		p.normalize()
	}
	return added, nil
}

func (s *Store) merge(specs []domain.NodeSpec, parent domain.Value, hasParent bool, level int, added *[]domain.Value) {
	for _, spec := range specs {
		r, exists := s.nodes[spec.Value]
		if !exists {
			r = &record{
				value:     spec.Value,
				parent:    parent,
				hasParent: hasParent,
				load:      domain.LoadLeaf,
			}
			s.nodes[spec.Value] = r
			if hasParent {
				p := s.nodes[parent]
				p.children = append(p.children, spec.Value)
			} else {
				s.roots = append(s.roots, spec.Value)
			}
			*added = append(*added, spec.Value)
		}
		r.label = spec.Label
		r.disabled = spec.Disabled
		r.mutex = spec.ExpandMutex
		r.data = maps.Clone(spec.Data)
		r.level = level

		switch {
		case spec.Children != nil:
			if r.load != domain.LoadLoading {
				r.load = domain.LoadResolved
			}
			s.merge(spec.Children, spec.Value, true, level+1, added)
		case spec.Lazy:
			if r.load == domain.LoadLeaf {
				r.load = domain.LoadUnresolved
			}
		}
		r.normalize()
	}
}

// Replace swaps the whole forest for specs. Identities present before and after keep
// their flags; a node described as lazy that already had resolved children keeps them
// as a cache. It returns the identities that no longer exist.
func (s *Store) Replace(specs []domain.NodeSpec) ([]domain.Value, error) {
	v := validator{path: make(map[domain.Value]struct{}), seen: make(map[domain.Value]struct{})}
	if err := v.check(specs, "", false); err != nil {
		return nil, err
	}

	old := s.nodes
	s.nodes = make(map[domain.Value]*record, len(old))
	s.roots = nil
	s.build(specs, old, v.seen, "", false, 0)

	var removed []domain.Value
	for val := range old {
		if _, ok := s.nodes[val]; !ok {
			removed = append(removed, val)
		}
	}
	slices.Sort(removed)
	return removed, nil
}

func (s *Store) build(specs []domain.NodeSpec, old map[domain.Value]*record, fresh map[domain.Value]struct{}, parent domain.Value, hasParent bool, level int) {
	for _, spec := range specs {
		r := &record{
			value:     spec.Value,
			label:     spec.Label,
			disabled:  spec.Disabled,
			mutex:     spec.ExpandMutex,
			data:      maps.Clone(spec.Data),
			parent:    parent,
			hasParent: hasParent,
			level:     level,
			load:      domain.LoadLeaf,
		}
		prev, existed := old[spec.Value]
		if existed {
			r.flags = prev.flags
		}
		s.nodes[spec.Value] = r
		if hasParent {
			p := s.nodes[parent]
			p.children = append(p.children, spec.Value)
		} else {
			s.roots = append(s.roots, spec.Value)
		}

		switch {
		case spec.Children != nil:
			r.load = domain.LoadResolved
			s.build(spec.Children, old, fresh, spec.Value, true, level+1)
		case spec.Lazy:
			r.load = domain.LoadUnresolved
			if existed && (prev.load == domain.LoadLoading || prev.load == domain.LoadResolved) {
				if cached, ok := cacheable(old, prev, fresh); ok {
					r.load = prev.load
					s.adopt(old, cached, spec.Value, level+1)
				}
			}
		}
		r.normalize()
	}
}

// cacheable returns the children of prev if none of its descendants collide with fresh identities.
func cacheable(old map[domain.Value]*record, prev *record, fresh map[domain.Value]struct{}) ([]domain.Value, bool) {
	stack := slices.Clone(prev.children)
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, clash := fresh[v]; clash {
			return nil, false
		}
		stack = append(stack, old[v].children...)
	}
	return prev.children, true
}

// adopt moves cached records from the previous forest under parent.
func (s *Store) adopt(old map[domain.Value]*record, children []domain.Value, parent domain.Value, level int) {
	p := s.nodes[parent]
	for _, v := range children {
		r := old[v]
		r.level = level
		s.nodes[v] = r
		p.children = append(p.children, v)
		grand := r.children
		r.children = nil
		s.adopt(old, grand, v, level+1)
	}
}

// Remove detaches v and its subtree. It returns every removed identity in pre-order.
func (s *Store) Remove(v domain.Value) ([]domain.Value, error) {
	r, ok := s.nodes[v]
	if !ok {
		return nil, notFound(v)
	}
	removed := []domain.Value{v}
	s.walk(r.children, func(d *record) bool {
		removed = append(removed, d.value)
		return true
	})
	for _, d := range removed {
		delete(s.nodes, d)
	}

	if r.hasParent {
		p := s.nodes[r.parent]
		p.children = slices.DeleteFunc(p.children, func(c domain.Value) bool { return c == v })
		p.normalize()
	} else {
		s.roots = slices.DeleteFunc(s.roots, func(c domain.Value) bool { return c == v })
	}
	return removed, nil
}

// validator checks a batch for identity errors before anything is committed.
type validator struct {
	path     map[domain.Value]struct{}
	seen     map[domain.Value]struct{}
	existing map[domain.Value]*record
}

func (v *validator) check(specs []domain.NodeSpec, parent domain.Value, hasParent bool) error {
	for _, spec := range specs {
		if spec.Value == "" {
			return &domain.IdentityError{Value: parent, Err: domain.ErrEmptyIdentity}
		}
		if _, onPath := v.path[spec.Value]; onPath {
			return &domain.IdentityError{Value: spec.Value, Err: domain.ErrCycleDetected}
		}
		if _, dup := v.seen[spec.Value]; dup {
			return &domain.IdentityError{Value: spec.Value, Err: domain.ErrDuplicateIdentity}
		}
		v.seen[spec.Value] = struct{}{}

		if r, ok := v.existing[spec.Value]; ok {
			if r.hasParent != hasParent || r.parent != parent {
				return &domain.IdentityError{Value: spec.Value, Err: domain.ErrDuplicateIdentity}
			}
		}

		if len(spec.Children) > 0 {
			v.path[spec.Value] = struct{}{}
			err := v.check(spec.Children, spec.Value, true)
			delete(v.path, spec.Value)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
