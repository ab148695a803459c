// Package events fans engine events out to subscribers.
package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/sourcegraph/conc/panics"
)

type subscription struct {
	id    uint64
	types []domain.EventType
	fn    domain.Handler
}

// Emitter delivers events to any number of handlers, in subscription order.
// A panicking handler is logged and does not stop delivery to the others.
type Emitter struct {
	mu     sync.RWMutex
	next   uint64
	subs   []subscription
	logger *slog.Logger
}

// New creates an emitter. A nil logger discards handler failures.
func New(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Emitter{logger: logger}
}

// On subscribes fn to one event type. The returned func unsubscribes it.
func (e *Emitter) On(t domain.EventType, fn domain.Handler) func() {
	return e.subscribe(fn, t)
}

// OnAny subscribes fn to every event type.
func (e *Emitter) OnAny(fn domain.Handler) func() {
	return e.subscribe(fn)
}

// Hook subscribes every non-nil hook. The returned func unsubscribes all of them.
func (e *Emitter) Hook(h domain.Hooks) func() {
	var offs []func()
	for t, fn := range h.Handlers() {
		offs = append(offs, e.On(t, fn))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (e *Emitter) subscribe(fn domain.Handler, types ...domain.EventType) func() {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	e.next++
	id := e.next
	e.subs = append(e.subs, subscription{id: id, types: types, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.subs = slices.DeleteFunc(e.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// Len returns the number of live subscriptions.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Emit delivers ev synchronously to every matching handler.
func (e *Emitter) Emit(ctx context.Context, ev *domain.Event) {
	e.mu.RLock()
	subs := slices.Clone(e.subs)
	e.mu.RUnlock()

	for _, s := range subs {
		if len(s.types) > 0 && !slices.Contains(s.types, ev.Type) {
			continue
		}
		var pc panics.Catcher
		pc.Try(func() { s.fn(ctx, ev) })
		if r := pc.Recovered(); r != nil {
			e.logger.Error("event handler panicked", "type", ev.Type, "node", ev.Node.Value, "error", r.AsError())
		}
	}
}

// Batch collects events produced while the engine lock is held.
type Batch struct {
	events []*domain.Event
}

// Add appends ev to the batch.
func (b *Batch) Add(ev *domain.Event) {
	b.events = append(b.events, ev)
}

// Len returns the number of collected events.
func (b *Batch) Len() int {
	return len(b.events)
}

// Events returns the collected events in commit order.
func (b *Batch) Events() []*domain.Event {
	return b.events
}

// Flush emits every collected event in order and empties the batch.
func (b *Batch) Flush(ctx context.Context, e *Emitter) {
	events := b.events
	b.events = nil
	for _, ev := range events {
		e.Emit(ctx, ev)
	}
}
