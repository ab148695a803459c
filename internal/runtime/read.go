package runtime

import (
	"github.com/aretw0/canopy/pkg/domain"
)

func notFound(v domain.Value) error {
	return &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
}

func (e *Engine) views(values []domain.Value) []domain.NodeView {
	out := make([]domain.NodeView, 0, len(values))
	for _, v := range values {
		out = append(out, e.view(v))
	}
	return out
}

// Get returns the projection of v.
func (e *Engine) Get(v domain.Value) (domain.NodeView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.store.Get(v)
	if !ok {
		return domain.NodeView{}, notFound(v)
	}
	return n, nil
}

// Has reports whether v is in the tree.
func (e *Engine) Has(v domain.Value) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Has(v)
}

// Len returns the number of nodes.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Len()
}

// Roots returns the root projections.
func (e *Engine) Roots() []domain.NodeView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.views(e.store.Roots())
}

// Children returns the known children of v.
func (e *Engine) Children(v domain.Value) ([]domain.NodeView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	children, err := e.store.Children(v)
	if err != nil {
		return nil, err
	}
	return e.views(children), nil
}

// Ancestors returns the ancestors of v, nearest first.
func (e *Engine) Ancestors(v domain.Value) ([]domain.NodeView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	anc, err := e.store.Ancestors(v)
	if err != nil {
		return nil, err
	}
	return e.views(anc), nil
}

// Descendants returns the descendants of v in depth-first pre-order.
func (e *Engine) Descendants(v domain.Value) ([]domain.NodeView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	desc, err := e.store.Descendants(v)
	if err != nil {
		return nil, err
	}
	return e.views(desc), nil
}

// Visible returns the projection of every node reachable through expanded ancestors.
func (e *Engine) Visible() []domain.NodeView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Visible()
}

// Nodes returns the projection of every node in depth-first order.
func (e *Engine) Nodes() []domain.NodeView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.All()
}

// Checked returns the visible checked set.
func (e *Engine) Checked() []domain.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Value()
}

// Expanded returns the expanded set in display order.
func (e *Engine) Expanded() []domain.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exp.Value()
}

// Activated returns the activated set in display order.
func (e *Engine) Activated() []domain.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.act.Value()
}

// MaxExceeded reports whether the visible checked set has reached the cap.
func (e *Engine) MaxExceeded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Max > 0 && e.sel.Count() >= e.cfg.Max
}

// On subscribes fn to an event type.
func (e *Engine) On(t domain.EventType, fn domain.Handler) func() {
	return e.emitter.On(t, fn)
}

// OnAny subscribes fn to every event type.
func (e *Engine) OnAny(fn domain.Handler) func() {
	return e.emitter.OnAny(fn)
}
