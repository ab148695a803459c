package domain

// Snapshot is the controlled-value view of a tree: the three identity lists a host
// keeps in sync with the engine. It is what session stores persist.
type Snapshot struct {
	// SessionID identifies the snapshot in a store. Empty for ad-hoc snapshots.
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`

	Checked   []Value `json:"checked" yaml:"checked"`
	Expanded  []Value `json:"expanded" yaml:"expanded"`
	Activated []Value `json:"activated" yaml:"activated"`
}

// NewSnapshot creates an empty snapshot for a session.
func NewSnapshot(sessionID string) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		Checked:   []Value{},
		Expanded:  []Value{},
		Activated: []Value{},
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		SessionID: s.SessionID,
		Checked:   append([]Value{}, s.Checked...),
		Expanded:  append([]Value{}, s.Expanded...),
		Activated: append([]Value{}, s.Activated...),
	}
}
