// Package transfer implements a source/target transfer widget: two checkable lists over
// one data set and the operations that move checked items between them.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/canopy/internal/events"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/selection"
	"github.com/aretw0/canopy/pkg/domain"
)

// Item is one entry of the data set.
type Item struct {
	Value    domain.Value   `json:"value" yaml:"value" mapstructure:"value"`
	Label    string         `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Disabled bool           `json:"disabled,omitempty" yaml:"disabled,omitempty" mapstructure:"disabled"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
}

// Direction tells which way a move went.
type Direction string

const (
	ToTarget Direction = "source->target"
	ToSource Direction = "target->source"
)

// Change is delivered to subscribers after a move.
type Change struct {
	Target    []domain.Value `json:"target"`
	Direction Direction      `json:"direction"`
	Moved     []domain.Value `json:"moved"`
}

// List is one side of a transfer. A move replaces both lists, so callers should fetch
// them again from the Transfer afterwards. List is not safe for concurrent use.
type List struct {
	flat *selection.Flat
}

func newList(items []Item, checked []domain.Value) (*List, error) {
	specs := make([]domain.NodeSpec, len(items))
	for i, it := range items {
		specs[i] = domain.NodeSpec{Value: it.Value, Label: it.Label, Disabled: it.Disabled, Data: it.Data}
	}
	flat, err := selection.NewFlat(specs, selection.Config{})
	if err != nil {
		return nil, err
	}
	if _, _, err := flat.SetValue(checked); err != nil {
		return nil, err
	}
	return &List{flat: flat}, nil
}

// Items returns the projection of every item of the list.
func (l *List) Items() []domain.NodeView {
	return l.flat.Options()
}

// Len returns the number of items.
func (l *List) Len() int {
	return len(l.flat.Options())
}

// Checked returns the checked values in list order.
func (l *List) Checked() []domain.Value {
	return l.flat.Value()
}

// SetChecked makes values the checked set of the list. Unknown values are ignored.
func (l *List) SetChecked(values []domain.Value) error {
	_, _, err := l.flat.SetValue(values)
	return err
}

// Toggle flips the checked state of an enabled item.
func (l *List) Toggle(v domain.Value) error {
	n, ok := l.find(v)
	if !ok {
		return &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
	}
	if n.Disabled {
		return nil
	}
	_, err := l.flat.SetChecked(v, !n.Checked, true)
	return err
}

func (l *List) find(v domain.Value) (domain.NodeView, bool) {
	for _, n := range l.flat.Options() {
		if n.Value == v {
			return n, true
		}
	}
	return domain.NodeView{}, false
}

// CheckAll checks or unchecks every enabled item.
func (l *List) CheckAll(checked bool) error {
	_, err := l.flat.CheckAll(checked)
	return err
}

// IsAllChecked reports whether the list is non-empty and every enabled item is checked.
func (l *List) IsAllChecked() bool {
	return l.flat.IsCheckAll()
}

// Indeterminate reports whether some but not all items are checked.
func (l *List) Indeterminate() bool {
	return l.flat.Indeterminate()
}

// Summary renders the checked count against the list size, e.g. "2 / 5".
func (l *List) Summary() string {
	return fmt.Sprintf("%d / %d", l.flat.IntersectionLen(), l.Len())
}

// Transfer holds the data set and the target value. Source is everything else.
type Transfer struct {
	mu     sync.Mutex
	data   []Item
	target []domain.Value
	source *List
	dest   *List

	emitter *events.Emitter
	logger  *slog.Logger
	ctx     context.Context
}

// Option configures a Transfer.
type Option func(*Transfer)

// WithTarget sets the initial target value.
func WithTarget(values ...domain.Value) Option {
	return func(t *Transfer) {
		t.target = values
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transfer) {
		t.logger = logger
	}
}

// New creates a transfer over data.
func New(data []Item, opts ...Option) (*Transfer, error) {
	t := &Transfer{data: slices.Clone(data), ctx: context.Background()}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	t.emitter = events.New(t.logger)
	if err := t.rebuild(nil); err != nil {
		return nil, err
	}
	return t, nil
}

// rebuild splits data into the two lists; each keeps whichever of checked it contains.
func (t *Transfer) rebuild(checked []domain.Value) error {
	inTarget := make(map[domain.Value]struct{}, len(t.target))
	for _, v := range t.target {
		inTarget[v] = struct{}{}
	}
	var src, dst []Item
	for _, it := range t.data {
		if _, ok := inTarget[it.Value]; ok {
			dst = append(dst, it)
		} else {
			src = append(src, it)
		}
	}

	source, err := newList(src, checked)
	if err != nil {
		return fmt.Errorf("invalid transfer data: %w", err)
	}
	dest, err := newList(dst, checked)
	if err != nil {
		return fmt.Errorf("invalid transfer data: %w", err)
	}
	t.source, t.dest = source, dest
	return nil
}

// Source returns the source list.
func (t *Transfer) Source() *List {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source
}

// Target returns the target list.
func (t *Transfer) Target() *List {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dest
}

// TargetValue returns the target value in the order items were moved.
func (t *Transfer) TargetValue() []domain.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.target)
}

// SetTarget follows an externally controlled target value without notifying subscribers.
func (t *Transfer) SetTarget(values []domain.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = slices.Clone(values)
	return t.rebuild(append(t.source.Checked(), t.dest.Checked()...))
}

// MoveToTarget moves the checked, enabled source items to the target.
func (t *Transfer) MoveToTarget() (Change, error) {
	return t.move(ToTarget)
}

// MoveToSource moves the checked, enabled target items back to the source.
func (t *Transfer) MoveToSource() (Change, error) {
	return t.move(ToSource)
}

func (t *Transfer) move(dir Direction) (Change, error) {
	t.mu.Lock()
	from := t.source
	if dir == ToSource {
		from = t.dest
	}
	var moved []domain.Value
	for _, n := range from.Items() {
		if n.Checked && !n.Disabled {
			moved = append(moved, n.Value)
		}
	}
	if len(moved) == 0 {
		t.mu.Unlock()
		return Change{Target: slices.Clone(t.target), Direction: dir}, nil
	}

	if dir == ToTarget {
		t.target = append(t.target, moved...)
	} else {
		t.target = slices.DeleteFunc(t.target, func(v domain.Value) bool { return slices.Contains(moved, v) })
	}
	checked := slices.DeleteFunc(append(t.source.Checked(), t.dest.Checked()...), func(v domain.Value) bool {
		return slices.Contains(moved, v)
	})
	if err := t.rebuild(checked); err != nil {
		t.mu.Unlock()
		return Change{}, err
	}
	change := Change{Target: slices.Clone(t.target), Direction: dir, Moved: moved}
	t.mu.Unlock()

	t.logger.Debug("transfer moved items", "direction", dir, "moved", moved)
	t.emitter.Emit(t.ctx, changeEvent(change))
	return change, nil
}

// changeEvent carries a move as a change event: Values is the new target and the moved
// items are Delta.Added (to target) or Delta.Removed (to source).
func changeEvent(c Change) *domain.Event {
	delta := domain.ValueDelta{Added: c.Moved}
	if c.Direction == ToSource {
		delta = domain.ValueDelta{Removed: c.Moved}
	}
	return &domain.Event{
		Timestamp: time.Now(),
		Type:      domain.EventChange,
		Values:    c.Target,
		Delta:     &delta,
		Trigger:   domain.TriggerAPI,
	}
}

func changeOf(ev *domain.Event) Change {
	c := Change{Target: ev.Values, Direction: ToTarget}
	if ev.Delta != nil {
		c.Moved = ev.Delta.Added
		if len(ev.Delta.Removed) > 0 {
			c.Direction, c.Moved = ToSource, ev.Delta.Removed
		}
	}
	return c
}

// On subscribes fn to the change events of moves. The returned func unsubscribes it.
func (t *Transfer) On(fn domain.Handler) func() {
	return t.emitter.On(domain.EventChange, fn)
}

// OnChange subscribes fn to moves. The returned func unsubscribes it.
func (t *Transfer) OnChange(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}
	return t.On(func(_ context.Context, ev *domain.Event) {
		fn(changeOf(ev))
	})
}
