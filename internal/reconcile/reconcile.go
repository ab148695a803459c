// Package reconcile diffs externally controlled value lists against engine state.
package reconcile

import (
	"slices"

	"github.com/aretw0/canopy/pkg/domain"
)

// Delta is the symmetric difference between two value lists.
type Delta = domain.ValueDelta

// Diff returns what must be added to and removed from current to reach next.
// Added keeps next's order, Removed keeps current's.
func Diff(current, next []domain.Value) Delta {
	return domain.DiffValues(current, next)
}

// Plan is a staged sync: every list is applied as one authoritative replacement.
type Plan struct {
	Checked   *Delta
	Expanded  *Delta
	Activated *Delta
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	for _, d := range []*Delta{p.Checked, p.Expanded, p.Activated} {
		if d != nil && !d.IsEmpty() {
			return false
		}
	}
	return true
}

// Apply returns next as the authoritative value list of current after applying d.
func Apply(current []domain.Value, d Delta) []domain.Value {
	removed := make(map[domain.Value]struct{}, len(d.Removed))
	for _, v := range d.Removed {
		removed[v] = struct{}{}
	}
	out := slices.DeleteFunc(slices.Clone(current), func(v domain.Value) bool {
		_, ok := removed[v]
		return ok
	})
	for _, v := range d.Added {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Unknown returns the values that fail has.
func Unknown(values []domain.Value, has func(domain.Value) bool) []domain.Value {
	var out []domain.Value
	for _, v := range values {
		if !has(v) {
			out = append(out, v)
		}
	}
	return out
}
