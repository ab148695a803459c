// Package group implements a checkbox group: a flat list of options with an optional
// check-all option, a selection cap and controlled values.
package group

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

// Option is one checkbox of the group. A nil Disabled takes the group's disabled flag,
// except for options built by FromValues, which are enabled unless set explicitly.
type Option struct {
	Value    domain.Value   `json:"value" yaml:"value" mapstructure:"value"`
	Label    string         `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Disabled *bool          `json:"disabled,omitempty" yaml:"disabled,omitempty" mapstructure:"disabled"`
	CheckAll bool           `json:"check_all,omitempty" yaml:"check_all,omitempty" mapstructure:"check_all"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`

	plain bool
}

// FromValues turns plain values into options labelled with the value itself.
func FromValues(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: domain.Value(v), Label: v, plain: true}
	}
	return out
}

// Disable returns a copy of o with an explicit disabled flag.
func (o Option) Disable(disabled bool) Option {
	o.Disabled = &disabled
	return o
}

// OptionView is the render state of an option.
type OptionView struct {
	Option
	// Disabled is the resolved flag, group default applied.
	Disabled      bool `json:"disabled"`
	Checked       bool `json:"checked"`
	Indeterminate bool `json:"indeterminate"`
	// Blocked is set on unchecked options once the cap is reached.
	Blocked bool `json:"blocked"`
}

// Group is a checkbox group. It is safe for concurrent use.
type Group struct {
	mu       sync.Mutex
	flat     *selection.Flat
	options  []Option
	disabled bool
	max      int
	initial  []domain.Value
	hooks    []domain.Hooks

	emitter *events.Emitter
	logger  *slog.Logger
	ctx     context.Context
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithMax caps the number of checked options.
func WithMax(max int) GroupOption {
	return func(g *Group) {
		g.max = max
	}
}

// WithDisabled disables every option of the group.
func WithDisabled(disabled bool) GroupOption {
	return func(g *Group) {
		g.disabled = disabled
	}
}

// WithValue sets the initial checked values.
func WithValue(values ...domain.Value) GroupOption {
	return func(g *Group) {
		g.initial = values
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) GroupOption {
	return func(g *Group) {
		g.logger = logger
	}
}

// WithHooks subscribes change callbacks.
func WithHooks(hooks domain.Hooks) GroupOption {
	return func(g *Group) {
		g.hooks = append(g.hooks, hooks)
	}
}

// New creates a group over options.
func New(options []Option, opts ...GroupOption) (*Group, error) {
	g := &Group{ctx: context.Background()}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.NewNop()
	}
	g.emitter = events.New(g.logger)
	for _, h := range g.hooks {
		g.emitter.Hook(h)
	}

	flat, err := selection.NewFlat(g.specs(options), selection.Config{Max: g.max})
	if err != nil {
		return nil, fmt.Errorf("invalid group options: %w", err)
	}
	g.flat = flat
	g.options = slices.Clone(options)

	if g.initial != nil {
		if _, _, err := g.flat.SetValue(g.initial); err != nil {
			return nil, fmt.Errorf("initial value: %w", err)
		}
	}
	return g, nil
}

// specs converts the real options (check-all entries excluded) to node specs.
func (g *Group) specs(options []Option) []domain.NodeSpec {
	var out []domain.NodeSpec
	for _, o := range options {
		if o.CheckAll {
			continue
		}
		out = append(out, domain.NodeSpec{
			Value:    o.Value,
			Label:    o.Label,
			Disabled: g.isDisabled(o),
			Data:     o.Data,
		})
	}
	return out
}

func (g *Group) isDisabled(o Option) bool {
	switch {
	case o.Disabled != nil:
		return *o.Disabled
	case o.plain:
		return false
	default:
		return g.disabled
	}
}

func (g *Group) option(v domain.Value) (Option, bool) {
	for _, o := range g.options {
		if o.Value == v && !o.CheckAll {
			return o, true
		}
	}
	return Option{}, false
}

// SetChecked toggles one option and returns the new value.
// Disabled options are left untouched.
func (g *Group) SetChecked(v domain.Value, checked bool) ([]domain.Value, error) {
	g.mu.Lock()
	var b events.Batch
	value, err := g.setChecked(&b, v, checked)
	g.mu.Unlock()
	b.Flush(g.ctx, g.emitter)
	return value, err
}

func (g *Group) setChecked(b *events.Batch, v domain.Value, checked bool) ([]domain.Value, error) {
	o, ok := g.option(v)
	if !ok {
		return g.flat.Value(), &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
	}
	if g.isDisabled(o) {
		return g.flat.Value(), nil
	}
	res, err := g.flat.SetChecked(v, checked, true)
	if err != nil {
		g.logger.Warn("group selection rejected", "option", v, "error", err)
		return res.Value, err
	}
	if res.Changed {
		b.Add(g.event(res.Value, res.Node))
	}
	return res.Value, nil
}

// CheckAll checks or unchecks every enabled option.
func (g *Group) CheckAll(checked bool) ([]domain.Value, error) {
	g.mu.Lock()
	var b events.Batch
	res, err := g.flat.CheckAll(checked)
	if err != nil {
		g.logger.Warn("group check-all rejected", "error", err)
	} else if res.Changed {
		b.Add(g.event(res.Value, domain.NodeView{}))
	}
	g.mu.Unlock()
	b.Flush(g.ctx, g.emitter)
	return res.Value, err
}

func (g *Group) event(value []domain.Value, node domain.NodeView) *domain.Event {
	return &domain.Event{
		Timestamp: time.Now(),
		Type:      domain.EventChange,
		Values:    value,
		Node:      node,
		Trigger:   domain.TriggerAPI,
	}
}

// SetValue follows an externally controlled value without emitting a change event.
func (g *Group) SetValue(values []domain.Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, unknown, err := g.flat.SetValue(values)
	if len(unknown) > 0 {
		g.logger.Debug("ignoring unknown group values", "values", unknown)
	}
	return err
}

// SetOptions replaces the options. Options that keep their value keep their state.
func (g *Group) SetOptions(options []Option) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.flat.SetOptions(g.specs(options)); err != nil {
		return fmt.Errorf("invalid group options: %w", err)
	}
	g.options = slices.Clone(options)
	return nil
}

// Value returns the checked values in option order.
func (g *Group) Value() []domain.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flat.Value()
}

// IsChecked reports whether option v is checked.
func (g *Group) IsChecked(v domain.Value) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flat.IsChecked(v)
}

// IsCheckAll reports whether every enabled option is checked.
func (g *Group) IsCheckAll() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flat.IsCheckAll()
}

// Indeterminate reports whether some but not all options are checked.
func (g *Group) Indeterminate() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flat.Indeterminate()
}

// IntersectionLen returns how many options are checked.
func (g *Group) IntersectionLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flat.IntersectionLen()
}

// MaxExceeded reports whether the cap has been reached.
func (g *Group) MaxExceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flat.MaxExceeded()
}

// Options returns the render state of every option, check-all entries included.
func (g *Group) Options() []OptionView {
	g.mu.Lock()
	defer g.mu.Unlock()

	full := g.flat.MaxExceeded()
	out := make([]OptionView, 0, len(g.options))
	for _, o := range g.options {
		if o.CheckAll {
			out = append(out, OptionView{
				Option:        o,
				Disabled:      g.isDisabled(o),
				Checked:       g.flat.IsCheckAll(),
				Indeterminate: g.flat.Indeterminate(),
			})
			continue
		}
		checked := g.flat.IsChecked(o.Value)
		out = append(out, OptionView{
			Option:   o,
			Disabled: g.isDisabled(o),
			Checked:  checked,
			Blocked:  full && !checked,
		})
	}
	return out
}

// On subscribes to change events. The event node is the toggled option, or zero for check-all.
func (g *Group) On(fn domain.Handler) func() {
	return g.emitter.On(domain.EventChange, fn)
}
