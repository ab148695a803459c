package selection

import (
	"github.com/aretw0/canopy/internal/store"
	"github.com/aretw0/canopy/pkg/domain"
)

// CheckAllValue is the identity of the synthetic root behind a flat list.
// It never appears in values, counts or events.
const CheckAllValue domain.Value = "\x00check-all"

// Flat is the degenerate one-level case: options hang under a synthetic root so that
// check-all runs through the same cascade and limit logic as a tree.
type Flat struct {
	*Engine
	store *store.Store
}

// NewFlat builds a flat selection over options. Options must be leaves.
func NewFlat(options []domain.NodeSpec, cfg Config) (*Flat, error) {
	cfg.CheckStrictly = false
	cfg.ValueMode = domain.ValueModeOnlyLeaf

	children := make([]domain.NodeSpec, len(options))
	for i, o := range options {
		children[i] = domain.NodeSpec{Value: o.Value, Label: o.Label, Disabled: o.Disabled, Data: o.Data}
	}
	s := store.New()
	if _, err := s.Replace([]domain.NodeSpec{{Value: CheckAllValue, Children: children}}); err != nil {
		return nil, err
	}
	e := New(s, cfg)
	e.Hide(CheckAllValue)
	return &Flat{Engine: e, store: s}, nil
}

// Options returns the option projections in order.
func (f *Flat) Options() []domain.NodeView {
	children, _ := f.store.Children(CheckAllValue)
	out := make([]domain.NodeView, 0, len(children))
	for _, c := range children {
		v, _ := f.store.Get(c)
		out = append(out, v)
	}
	return out
}

// SetOptions swaps the option list. Options surviving by identity keep their checked state.
func (f *Flat) SetOptions(options []domain.NodeSpec) error {
	children := make([]domain.NodeSpec, len(options))
	for i, o := range options {
		children[i] = domain.NodeSpec{Value: o.Value, Label: o.Label, Disabled: o.Disabled, Data: o.Data}
	}
	if _, err := f.store.Replace([]domain.NodeSpec{{Value: CheckAllValue, Children: children}}); err != nil {
		return err
	}
	// New options never inherit check-all; the root is re-derived from the survivors.
	f.store.SetChecked(CheckAllValue, false)
	f.Recompute(nil, []domain.Value{CheckAllValue})
	return nil
}

// IsChecked reports whether option v is checked.
func (f *Flat) IsChecked(v domain.Value) bool {
	return v != CheckAllValue && f.store.Flags(v).Checked
}

// CheckAll checks or unchecks every enabled option at once.
func (f *Flat) CheckAll(checked bool) (Result, error) {
	return f.SetChecked(CheckAllValue, checked, true)
}

// IntersectionLen returns how many options are checked.
func (f *Flat) IntersectionLen() int {
	return f.Count()
}

// IsCheckAll reports whether every enabled option is checked. An empty list is never all-checked.
func (f *Flat) IsCheckAll() bool {
	return f.IntersectionLen() > 0 && f.store.Flags(CheckAllValue).Checked
}

// Indeterminate reports whether some, but not all, options are checked.
func (f *Flat) Indeterminate() bool {
	return !f.IsCheckAll() && f.IntersectionLen() > 0
}

// MaxExceeded reports whether the cap has been reached, so unchecked options should be blocked.
func (f *Flat) MaxExceeded() bool {
	max := f.Config().Max
	return max > 0 && f.Count() >= max
}
