package domain

// ValueDelta is the symmetric difference between two identity lists.
type ValueDelta struct {
	Added   []Value `json:"added,omitempty"`
	Removed []Value `json:"removed,omitempty"`
}

// IsEmpty reports whether the lists were equal as sets.
func (d ValueDelta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffValues computes which identities are in next but not in old (Added, in next order)
// and which are in old but not in next (Removed, in old order). Duplicates are ignored.
func DiffValues(old, next []Value) ValueDelta {
	oldSet := make(map[Value]struct{}, len(old))
	for _, v := range old {
		oldSet[v] = struct{}{}
	}
	nextSet := make(map[Value]struct{}, len(next))
	for _, v := range next {
		nextSet[v] = struct{}{}
	}

	var delta ValueDelta
	seen := make(map[Value]struct{}, len(next))
	for _, v := range next {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := oldSet[v]; !ok {
			delta.Added = append(delta.Added, v)
		}
	}
	clear(seen)
	for _, v := range old {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := nextSet[v]; !ok {
			delta.Removed = append(delta.Removed, v)
		}
	}
	return delta
}

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Checked   *ValueDelta `json:"checked,omitempty"`
	Expanded  *ValueDelta `json:"expanded,omitempty"`
	Activated *ValueDelta `json:"activated,omitempty"`
}

// Diff calculates the difference between old and next.
// If old is nil, it returns a diff representing the entire next snapshot (initial load).
// It returns nil when nothing changed.
func Diff(old, next *Snapshot) *SnapshotDiff {
	if next == nil {
		return nil
	}
	if old == nil {
		old = &Snapshot{}
	}

	diff := &SnapshotDiff{
		SessionID: next.SessionID,
		Checked:   deltaOrNil(old.Checked, next.Checked),
		Expanded:  deltaOrNil(old.Expanded, next.Expanded),
		Activated: deltaOrNil(old.Activated, next.Activated),
	}
	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func deltaOrNil(old, next []Value) *ValueDelta {
	d := DiffValues(old, next)
	if d.IsEmpty() {
		return nil
	}
	return &d
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.Checked == nil && d.Expanded == nil && d.Activated == nil
}
