package selection

import (
	"slices"

	"github.com/aretw0/canopy/internal/store"
	"github.com/aretw0/canopy/pkg/domain"
)

// Config controls cascade and limit behavior.
type Config struct {
	// CheckStrictly disables parent/child cascading.
	CheckStrictly bool
	// ValueMode selects the externally visible checked set. Defaults to onlyLeaf.
	ValueMode domain.ValueMode
	// Max caps the visible checked set. Zero means unlimited.
	Max int
}

// Result is the outcome of a committed selection change; it is the change event payload.
type Result struct {
	// Value is the full visible checked set after the operation, in display order.
	Value []domain.Value
	// Node is the node that triggered the change (zero for batch operations).
	Node domain.NodeView
	// Changed reports whether Value differs from the set before the operation.
	Changed bool
}

// Engine computes checked and indeterminate state over a store.
type Engine struct {
	store  *store.Store
	cfg    Config
	hidden map[domain.Value]struct{}
}

// New creates a selection engine over s.
func New(s *store.Store, cfg Config) *Engine {
	if !cfg.ValueMode.Valid() {
		cfg.ValueMode = domain.ValueModeOnlyLeaf
	}
	return &Engine{store: s, cfg: cfg, hidden: make(map[domain.Value]struct{})}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetMax changes the selection cap. It never unchecks anything.
func (e *Engine) SetMax(max int) {
	e.cfg.Max = max
}

// Hide excludes v from the visible checked set and its cardinality.
func (e *Engine) Hide(v domain.Value) {
	e.hidden[v] = struct{}{}
}

// overlay stages checked flags so a change can be evaluated before it is committed.
type overlay struct {
	s *store.Store
	m map[domain.Value]bool
}

func (o *overlay) checked(v domain.Value) bool {
	if b, ok := o.m[v]; ok {
		return b
	}
	return o.s.Flags(v).Checked
}

func (o *overlay) set(v domain.Value, checked bool) {
	o.m[v] = checked
}

func (e *Engine) newOverlay() *overlay {
	return &overlay{s: e.store, m: make(map[domain.Value]bool)}
}

// SetChecked checks or unchecks v. With cascade (and not strict), every non-disabled
// descendant follows. Outside strict mode the strict ancestors are always recomputed
// bottom-up, so a parent is checked exactly when all its enabled children are.
// It returns domain.ErrLimitExceeded (as *domain.LimitError) without mutating anything
// when the visible set would grow past Max.
func (e *Engine) SetChecked(v domain.Value, checked, cascade bool) (Result, error) {
	if !e.store.Has(v) {
		return Result{Value: e.Value()}, &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
	}

	o := e.newOverlay()
	o.set(v, checked)
	if !e.cfg.CheckStrictly {
		if cascade {
			e.cascadeDown(o, v, checked)
		}
		ancestors, _ := e.store.Ancestors(v)
		for _, a := range ancestors {
			o.set(a, e.derive(o, a))
		}
	}
	return e.commit(o, v)
}

// cascadeDown copies checked onto the non-disabled descendants of v.
// Disabled subtrees keep their state.
func (e *Engine) cascadeDown(o *overlay, v domain.Value, checked bool) {
	children, _ := e.store.Children(v)
	for _, c := range children {
		if e.store.Disabled(c) {
			continue
		}
		o.set(c, checked)
		e.cascadeDown(o, c, checked)
	}
}

// derive computes the checked flag of a parent from its children: checked iff every
// non-disabled child is checked. A node without enabled children keeps its own flag.
func (e *Engine) derive(o *overlay, v domain.Value) bool {
	children, _ := e.store.Children(v)
	enabled := 0
	for _, c := range children {
		if e.store.Disabled(c) {
			continue
		}
		enabled++
		if !o.checked(c) {
			return false
		}
	}
	if enabled == 0 {
		return o.checked(v)
	}
	return true
}

// SetValue replaces the checked state with values (interpreted through the value mode's
// cascade rules). Every node not reached from values ends up unchecked, disabled ones
// included. Unknown identities are ignored and returned.
func (e *Engine) SetValue(values []domain.Value) (Result, []domain.Value, error) {
	want := make(map[domain.Value]struct{}, len(values))
	var unknown []domain.Value
	for _, v := range values {
		if !e.store.Has(v) {
			unknown = append(unknown, v)
			continue
		}
		want[v] = struct{}{}
	}

	o := e.newOverlay()
	order := e.store.Order()
	for _, v := range order {
		_, listed := want[v]
		o.set(v, listed)
	}
	if !e.cfg.CheckStrictly {
		for _, v := range values {
			if _, ok := want[v]; ok {
				e.cascadeDown(o, v, true)
			}
		}
		e.deriveAll(o, order)
	}

	res, err := e.commit(o, "")
	return res, unknown, err
}

// deriveAll recomputes every parent bottom-up (reverse pre-order visits children first).
func (e *Engine) deriveAll(o *overlay, order []domain.Value) {
	for i := len(order) - 1; i >= 0; i-- {
		if e.store.HasChildren(order[i]) {
			o.set(order[i], e.derive(o, order[i]))
		}
	}
}

// Recompute is the explicit pass run after structural changes (loads, upserts, removals,
// replacements). Nodes in added inherit a checked, enabled parent; then the parents of
// added nodes, the touched nodes and all their ancestors are derived bottom-up and the
// indeterminate flags refreshed. Every other node keeps its flag. If inheriting would
// push the visible set past Max, added nodes stay unchecked and their parents are
// derived from them instead.
func (e *Engine) Recompute(added, touched []domain.Value) Result {
	before := e.Value()
	if !e.cfg.CheckStrictly {
		o := e.region(added, touched, true)
		if e.exceeds(before, e.valueWith(o)) {
			o = e.region(added, touched, false)
		}
		e.apply(o)
	}
	e.refreshIndeterminate(e.store.Roots())
	return e.result(before, "")
}

// region stages the Recompute pass over the changed part of the tree.
func (e *Engine) region(added, touched []domain.Value, inherit bool) *overlay {
	fresh := make(map[domain.Value]struct{})
	for _, v := range added {
		if !e.store.Has(v) {
			continue
		}
		fresh[v] = struct{}{}
		desc, _ := e.store.Descendants(v)
		for _, d := range desc {
			fresh[d] = struct{}{}
		}
	}

	dirty := make(map[domain.Value]struct{})
	mark := func(v domain.Value) {
		dirty[v] = struct{}{}
		ancestors, _ := e.store.Ancestors(v)
		for _, a := range ancestors {
			dirty[a] = struct{}{}
		}
	}
	for _, v := range touched {
		if e.store.Has(v) {
			mark(v)
		}
	}

	o := e.newOverlay()
	order := e.store.Order()
	for _, v := range order {
		if _, ok := fresh[v]; !ok {
			continue
		}
		p, ok := e.store.Parent(v)
		if !ok {
			continue
		}
		mark(p)
		if inherit && o.checked(p) && !e.store.Disabled(p) && !e.store.Disabled(v) {
			o.set(v, true)
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		if _, ok := dirty[v]; ok && e.store.HasChildren(v) {
			o.set(v, e.derive(o, v))
		}
	}
	return o
}

func (e *Engine) exceeds(before, after []domain.Value) bool {
	return e.cfg.Max > 0 && len(after) > e.cfg.Max && len(after) > len(before)
}

func (e *Engine) commit(o *overlay, trigger domain.Value) (Result, error) {
	before := e.Value()
	after := e.valueWith(o)
	if e.exceeds(before, after) {
		return Result{Value: before}, &domain.LimitError{Max: e.cfg.Max, Requested: len(after)}
	}

	e.apply(o)
	if trigger != "" {
		e.refreshIndeterminate([]domain.Value{e.store.RootOf(trigger)})
	} else {
		e.refreshIndeterminate(e.store.Roots())
	}
	return e.result(before, trigger), nil
}

func (e *Engine) apply(o *overlay) {
	for v, checked := range o.m {
		e.store.SetChecked(v, checked)
	}
}

func (e *Engine) result(before []domain.Value, trigger domain.Value) Result {
	after := e.Value()
	res := Result{Value: after, Changed: !slices.Equal(before, after)}
	if trigger != "" {
		res.Node, _ = e.store.Get(trigger)
	}
	return res
}

// refreshIndeterminate recomputes indeterminate flags for the given subtrees, post-order.
func (e *Engine) refreshIndeterminate(roots []domain.Value) {
	for _, r := range roots {
		e.indeterminate(r)
	}
}

// indeterminate returns the number of descendants of v and how many of them are checked,
// marking v indeterminate iff it is unchecked and 0 < checked < total.
func (e *Engine) indeterminate(v domain.Value) (total, checked int) {
	children, _ := e.store.Children(v)
	for _, c := range children {
		t, k := e.indeterminate(c)
		total += 1 + t
		checked += k
		if e.store.Flags(c).Checked {
			checked++
		}
	}
	e.store.SetIndeterminate(v, !e.store.Flags(v).Checked && checked > 0 && checked < total)
	return total, checked
}

// Value returns the visible checked set in display order.
func (e *Engine) Value() []domain.Value {
	return e.valueWith(e.newOverlay())
}

// Count returns the size of the visible checked set.
func (e *Engine) Count() int {
	return len(e.Value())
}

func (e *Engine) valueWith(o *overlay) []domain.Value {
	out := []domain.Value{}
	for _, v := range e.store.Order() {
		if _, hidden := e.hidden[v]; hidden || !o.checked(v) {
			continue
		}
		if e.visible(o, v) {
			out = append(out, v)
		}
	}
	return out
}

func (e *Engine) visible(o *overlay, v domain.Value) bool {
	if e.cfg.CheckStrictly {
		return true
	}
	switch e.cfg.ValueMode {
	case domain.ValueModeAll:
		return true
	case domain.ValueModeParentFirst:
		p, ok := e.store.Parent(v)
		if !ok {
			return true
		}
		if _, hidden := e.hidden[p]; hidden {
			return true
		}
		return !o.checked(p)
	default:
		return !e.store.HasChildren(v)
	}
}

// Inherit settles the children just loaded under parent: they inherit a checked parent,
// then parent and its ancestors are derived. The result names parent as the trigger.
func (e *Engine) Inherit(parent domain.Value, added []domain.Value) Result {
	res := e.Recompute(added, []domain.Value{parent})
	res.Node, _ = e.store.Get(parent)
	return res
}
