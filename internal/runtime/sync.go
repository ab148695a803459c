package runtime

import (
	"github.com/aretw0/canopy/internal/events"
	"github.com/aretw0/canopy/internal/reconcile"
	"github.com/aretw0/canopy/pkg/domain"
)

// SyncChecked makes the checked set follow an externally controlled value.
// It emits no change event; unknown identities are ignored.
func (e *Engine) SyncChecked(values []domain.Value) error {
	return e.do(func(*events.Batch) error {
		return e.syncChecked(values)
	})
}

func (e *Engine) syncChecked(values []domain.Value) error {
	if unknown := reconcile.Unknown(values, e.store.Has); len(unknown) > 0 {
		e.logger.Debug("ignoring unknown checked values", "values", unknown)
	}
	current := e.sel.Value()
	d := reconcile.Diff(current, values)
	if d.IsEmpty() {
		return nil
	}
	return e.applyChecked(current, d)
}

func (e *Engine) applyChecked(current []domain.Value, d reconcile.Delta) error {
	if _, _, err := e.sel.SetValue(reconcile.Apply(current, d)); err != nil {
		e.logger.Warn("controlled checked value rejected", "error", err)
		return err
	}
	return nil
}

// SyncExpanded makes the expanded set follow an externally controlled value. Unresolved
// identities are loaded and expanded when they settle, without expand events.
func (e *Engine) SyncExpanded(values []domain.Value) {
	_ = e.do(func(*events.Batch) error {
		e.syncExpanded(values)
		return nil
	})
}

// syncExpanded always writes, even for an equal list, so that expansions still waiting
// on a load are dropped when the new value no longer names them.
func (e *Engine) syncExpanded(values []domain.Value) {
	current := e.exp.Value()
	_, loads := e.exp.SetValue(reconcile.Apply(current, reconcile.Diff(current, values)))
	e.queued = append(e.queued, loads...)
}

// SyncActivated makes the activated set follow an externally controlled value.
func (e *Engine) SyncActivated(values []domain.Value) {
	_ = e.do(func(*events.Batch) error {
		e.syncActivated(values)
		return nil
	})
}

// syncActivated replaces with values as given: in exclusive mode the last identity wins.
func (e *Engine) syncActivated(values []domain.Value) {
	if d := reconcile.Diff(e.act.Value(), values); !d.IsEmpty() {
		e.act.Replace(values)
	}
}

// Snapshot returns the current controlled values.
func (e *Engine) Snapshot() *domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := domain.NewSnapshot("")
	s.Checked = e.sel.Value()
	s.Expanded = e.exp.Value()
	s.Activated = e.act.Value()
	return s
}

// Restore applies all three lists of s as one silent sync. If the checked list is
// rejected nothing is applied.
func (e *Engine) Restore(s *domain.Snapshot) error {
	if s == nil {
		return nil
	}
	return e.do(func(*events.Batch) error {
		checked, expanded, activated := e.sel.Value(), e.exp.Value(), e.act.Value()
		plan := reconcile.Plan{
			Checked:   ptr(reconcile.Diff(checked, s.Checked)),
			Expanded:  ptr(reconcile.Diff(expanded, s.Expanded)),
			Activated: ptr(reconcile.Diff(activated, s.Activated)),
		}
		if plan.Empty() {
			e.logger.Debug("snapshot matches current state", "session", s.SessionID)
		}
		if !plan.Checked.IsEmpty() {
			if err := e.applyChecked(checked, *plan.Checked); err != nil {
				return err
			}
		}
		e.syncExpanded(s.Expanded)
		if !plan.Activated.IsEmpty() {
			e.act.Replace(s.Activated)
		}
		return nil
	})
}

func ptr[T any](v T) *T {
	return &v
}
