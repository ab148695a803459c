package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventChange    EventType = "change"
	EventExpand    EventType = "expand"
	EventActive    EventType = "active"
	EventLoad      EventType = "load"
	EventLoadError EventType = "load_error"
)

// Trigger tells what caused an event.
type Trigger string

const (
	// TriggerAPI is a direct call on the tree (user action or scripted SetItem).
	TriggerAPI Trigger = "api"
	// TriggerLoad is the settlement of a lazy load.
	TriggerLoad Trigger = "load"
)

// Event is delivered to subscribers after the operation that produced it has committed.
//
// Values holds the affected identities: the full new checked, expanded or activated set
// for change/expand/active, and the inserted child identities for load.
// Delta, when set, names the identities that entered and left Values.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      EventType     `json:"type"`
	Values    []Value       `json:"values"`
	Delta     *ValueDelta   `json:"delta,omitempty"`
	Node      NodeView      `json:"node"`
	Trigger   Trigger       `json:"trigger"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Err       error         `json:"-"`
}

// Handler receives events.
type Handler func(ctx context.Context, e *Event)

// Hooks is the callback form of the event stream. Each non-nil hook is subscribed
// to the matching event type.
type Hooks struct {
	OnChange    Handler
	OnExpand    Handler
	OnActive    Handler
	OnLoad      Handler
	OnLoadError Handler
}

// Handlers returns the non-nil hooks keyed by event type.
func (h Hooks) Handlers() map[EventType]Handler {
	out := make(map[EventType]Handler)
	for t, fn := range map[EventType]Handler{
		EventChange:    h.OnChange,
		EventExpand:    h.OnExpand,
		EventActive:    h.OnActive,
		EventLoad:      h.OnLoad,
		EventLoadError: h.OnLoadError,
	} {
		if fn != nil {
			out[t] = fn
		}
	}
	return out
}
