package activation

import (
	"slices"

	"github.com/aretw0/canopy/internal/store"
	"github.com/aretw0/canopy/pkg/domain"
)

// Engine tracks the activated set. In exclusive mode it holds at most one identity.
type Engine struct {
	store    *store.Store
	multiple bool
}

// New creates an activation engine over s.
func New(s *store.Store, multiple bool) *Engine {
	return &Engine{store: s, multiple: multiple}
}

// Multiple reports whether more than one node may be active.
func (e *Engine) Multiple() bool {
	return e.multiple
}

// Set activates or deactivates v. In exclusive mode activating v deactivates every other
// node in the same step. It returns whether the activated set changed.
func (e *Engine) Set(v domain.Value, activated bool) (bool, error) {
	if !e.store.Has(v) {
		return false, &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
	}
	before := e.Value()
	if activated && !e.multiple {
		for _, other := range before {
			if other != v {
				e.store.SetActivated(other, false)
			}
		}
	}
	e.store.SetActivated(v, activated)
	return !slices.Equal(before, e.Value()), nil
}

// Replace makes the activated set equal values. Unknown identities are skipped;
// in exclusive mode only the last known identity is kept.
func (e *Engine) Replace(values []domain.Value) bool {
	want := make(map[domain.Value]struct{}, len(values))
	for _, v := range values {
		if !e.store.Has(v) {
			continue
		}
		if !e.multiple {
			clear(want)
		}
		want[v] = struct{}{}
	}

	before := e.Value()
	for _, v := range e.store.Order() {
		_, ok := want[v]
		e.store.SetActivated(v, ok)
	}
	return !slices.Equal(before, e.Value())
}

// Value returns the activated identities in display order.
func (e *Engine) Value() []domain.Value {
	out := []domain.Value{}
	e.store.Walk(func(n domain.NodeView) bool {
		if n.Activated {
			out = append(out, n.Value)
		}
		return true
	})
	return out
}
