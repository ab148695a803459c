package runtime

import (
	"fmt"
	"slices"

	"github.com/aretw0/canopy/internal/events"
	"github.com/aretw0/canopy/pkg/domain"
)

type values struct {
	checked   []domain.Value
	expanded  []domain.Value
	activated []domain.Value
	shape     map[domain.Value]outline
}

// outline is what the selection pass needs to know about a node's place in the tree.
type outline struct {
	children []domain.Value
	disabled bool
}

func (e *Engine) capture() values {
	shape := make(map[domain.Value]outline, e.store.Len())
	for _, v := range e.store.Order() {
		children, _ := e.store.Children(v)
		shape[v] = outline{children: children, disabled: e.store.Disabled(v)}
	}
	return values{
		checked:   e.sel.Value(),
		expanded:  e.exp.Value(),
		activated: e.act.Value(),
		shape:     shape,
	}
}

// changes compares the current store with the shape captured in before. It returns the
// identities inserted since then, in pre-order, and the surviving nodes whose checked
// flag may need deriving again: the ones whose children changed and the parents of the
// ones whose disabled flag flipped.
func (e *Engine) changes(before values) (added, touched []domain.Value) {
	for _, v := range e.store.Order() {
		prev, ok := before.shape[v]
		if !ok {
			added = append(added, v)
			continue
		}
		children, _ := e.store.Children(v)
		if !slices.Equal(prev.children, children) {
			touched = append(touched, v)
		}
		if prev.disabled != e.store.Disabled(v) {
			if p, ok := e.store.Parent(v); ok {
				touched = append(touched, p)
			}
		}
	}
	return added, touched
}

// settleStructure runs the recompute pass after the store changed shape and emits an
// event for every controlled list that changed as a consequence.
func (e *Engine) settleStructure(b *events.Batch, before values, node domain.NodeView) {
	e.exp.Forget()
	e.sel.Recompute(e.changes(before))

	after := e.capture()
	if !slices.Equal(before.checked, after.checked) {
		b.Add(e.event(domain.EventChange, after.checked, node, domain.TriggerAPI))
	}
	if !slices.Equal(before.expanded, after.expanded) {
		b.Add(e.event(domain.EventExpand, after.expanded, node, domain.TriggerAPI))
	}
	if !slices.Equal(before.activated, after.activated) {
		b.Add(e.event(domain.EventActive, after.activated, node, domain.TriggerAPI))
	}
}

// SetData replaces the whole tree. Identities present before and after keep their state.
func (e *Engine) SetData(specs []domain.NodeSpec) error {
	return e.do(func(b *events.Batch) error {
		before := e.capture()
		removed, err := e.store.Replace(specs)
		if err != nil {
			return fmt.Errorf("invalid tree data: %w", err)
		}
		e.logger.Debug("tree data replaced", "nodes", e.store.Len(), "removed", len(removed))
		e.settleStructure(b, before, domain.NodeView{})
		e.eager(e.store.Order(), false)
		return nil
	})
}

// Upsert merges specs under parent (nil for roots).
func (e *Engine) Upsert(parent *domain.Value, specs []domain.NodeSpec) ([]domain.Value, error) {
	var added []domain.Value
	err := e.do(func(b *events.Batch) error {
		before := e.capture()
		var err error
		added, err = e.store.Upsert(parent, specs)
		if err != nil {
			return err
		}
		var node domain.NodeView
		if parent != nil {
			node = e.view(*parent)
		}
		e.settleStructure(b, before, node)
		e.eager(added, false)
		return nil
	})
	return added, err
}

// Remove deletes v and its subtree.
func (e *Engine) Remove(v domain.Value) ([]domain.Value, error) {
	var removed []domain.Value
	err := e.do(func(b *events.Batch) error {
		before := e.capture()
		node := e.view(v)
		var err error
		removed, err = e.store.Remove(v)
		if err != nil {
			return err
		}
		e.settleStructure(b, before, node)
		return nil
	})
	return removed, err
}
