package canopy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/canopy/internal/events"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// Tree is the high-level entry point for the Canopy library.
// It wraps the internal runtime and is safe for concurrent use.
type Tree struct {
	runtime *runtime.Engine
	loader  ports.ChildLoader
	logger  *slog.Logger
	cfg     runtime.Config
	hooks   []domain.Hooks
	ctx     context.Context
	Name    string
}

// Option defines a functional option for configuring the Tree.
type Option func(*Tree)

// WithLoader injects the ChildLoader used to resolve lazy nodes.
func WithLoader(l ports.ChildLoader) Option {
	return func(t *Tree) {
		t.loader = l
	}
}

// WithLogger sets a custom structured logger for the tree.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = logger
	}
}

// WithHooks registers event callbacks. It may be given more than once.
func WithHooks(hooks domain.Hooks) Option {
	return func(t *Tree) {
		t.hooks = append(t.hooks, hooks)
	}
}

// WithName labels the tree in log records.
func WithName(name string) Option {
	return func(t *Tree) {
		t.Name = name
	}
}

// WithContext sets the context passed to event handlers and loaders.
// Close cancels the loader side of it.
func WithContext(ctx context.Context) Option {
	return func(t *Tree) {
		t.ctx = ctx
	}
}

// WithMax caps the visible checked set. Zero means no cap.
func WithMax(max int) Option {
	return func(t *Tree) {
		t.cfg.Max = max
	}
}

// WithCheckStrictly disables cascading between parents and children.
func WithCheckStrictly(strict bool) Option {
	return func(t *Tree) {
		t.cfg.CheckStrictly = strict
	}
}

// WithValueMode selects which checked nodes are reported (default onlyLeaf).
func WithValueMode(mode domain.ValueMode) Option {
	return func(t *Tree) {
		t.cfg.ValueMode = mode
	}
}

// WithActiveMultiple allows more than one activated node.
func WithActiveMultiple(multiple bool) Option {
	return func(t *Tree) {
		t.cfg.ActiveMultiple = multiple
	}
}

// WithLazy controls whether unresolved nodes wait for an expand before loading (default true).
func WithLazy(lazy bool) Option {
	return func(t *Tree) {
		t.cfg.Lazy = lazy
	}
}

// WithExpandAll expands every resolved node on creation.
func WithExpandAll() Option {
	return func(t *Tree) {
		t.cfg.ExpandAll = true
	}
}

// WithExpandLevel expands the first depth levels on creation.
func WithExpandLevel(depth int) Option {
	return func(t *Tree) {
		t.cfg.ExpandLevel = depth
	}
}

// WithExpandMutex makes every group of siblings mutually exclusive when expanding.
func WithExpandMutex() Option {
	return func(t *Tree) {
		t.cfg.ExpandMutex = true
	}
}

// WithCheckedValue sets the initial controlled checked value.
func WithCheckedValue(values ...domain.Value) Option {
	return func(t *Tree) {
		t.cfg.CheckedValue = append([]domain.Value{}, values...)
	}
}

// WithExpandedValue sets the initial controlled expanded value.
func WithExpandedValue(values ...domain.Value) Option {
	return func(t *Tree) {
		t.cfg.ExpandedValue = append([]domain.Value{}, values...)
	}
}

// WithActiveValue sets the initial controlled activated value.
func WithActiveValue(values ...domain.Value) Option {
	return func(t *Tree) {
		t.cfg.ActiveValue = append([]domain.Value{}, values...)
	}
}

// New builds a tree over data.
// Structural errors (duplicate identities, cycles) are returned and no tree is created.
func New(data []domain.NodeSpec, opts ...Option) (*Tree, error) {
	t := &Tree{cfg: runtime.DefaultConfig()}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	if t.Name != "" {
		t.logger = t.logger.With("tree", t.Name)
	}
	if !t.cfg.ValueMode.Valid() {
		return nil, fmt.Errorf("unknown value mode %q", t.cfg.ValueMode)
	}

	// Hooks are subscribed before the runtime starts so eager loads reach them.
	emitter := events.New(t.logger)
	for _, h := range t.hooks {
		emitter.Hook(h)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithConfig(t.cfg),
		runtime.WithLogger(t.logger),
		runtime.WithEmitter(emitter),
		runtime.WithLoader(t.loader),
	}
	if t.ctx != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithContext(t.ctx))
	}

	rt, err := runtime.NewEngine(data, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	t.runtime = rt
	return t, nil
}

// CheckOption tweaks a single SetChecked call.
type CheckOption func(*checkOptions)

type checkOptions struct {
	cascade bool
}

// NoCascade checks only the node itself, leaving parents and children untouched.
func NoCascade() CheckOption {
	return func(o *checkOptions) {
		o.cascade = false
	}
}

// SetChecked checks or unchecks v and returns the new visible checked set.
// A change that would exceed the cap returns an error matching domain.ErrLimitExceeded
// and leaves the tree untouched.
func (t *Tree) SetChecked(v domain.Value, checked bool, opts ...CheckOption) ([]domain.Value, error) {
	o := checkOptions{cascade: true}
	for _, opt := range opts {
		opt(&o)
	}
	res, err := t.runtime.SetChecked(v, checked, o.cascade)
	return res.Value, err
}

// SetExpanded expands or collapses v. Expanding an unresolved node starts a lazy load;
// the node opens when the load settles.
func (t *Tree) SetExpanded(v domain.Value, expanded bool) error {
	return t.runtime.SetExpanded(v, expanded)
}

// SetActivated activates or deactivates v.
func (t *Tree) SetActivated(v domain.Value, activated bool) error {
	return t.runtime.SetActivated(v, activated)
}

// SetItem sets flags of v directly, through the same rules as user actions.
func (t *Tree) SetItem(v domain.Value, patch domain.ItemPatch) error {
	return t.runtime.SetItem(v, patch)
}

// SetData replaces the tree data. Nodes that keep their identity keep their state.
func (t *Tree) SetData(data []domain.NodeSpec) error {
	return t.runtime.SetData(data)
}

// Upsert merges nodes under parent (nil for roots) and returns the new identities.
func (t *Tree) Upsert(parent *domain.Value, data []domain.NodeSpec) ([]domain.Value, error) {
	return t.runtime.Upsert(parent, data)
}

// Remove deletes v and its subtree and returns the removed identities.
func (t *Tree) Remove(v domain.Value) ([]domain.Value, error) {
	return t.runtime.Remove(v)
}

// SetMax changes the selection cap.
func (t *Tree) SetMax(max int) {
	t.runtime.SetMax(max)
}

// SyncChecked follows an externally controlled checked value without emitting events.
func (t *Tree) SyncChecked(values []domain.Value) error {
	return t.runtime.SyncChecked(values)
}

// SyncExpanded follows an externally controlled expanded value without emitting events.
func (t *Tree) SyncExpanded(values []domain.Value) {
	t.runtime.SyncExpanded(values)
}

// SyncActivated follows an externally controlled activated value without emitting events.
func (t *Tree) SyncActivated(values []domain.Value) {
	t.runtime.SyncActivated(values)
}

// Snapshot returns the current controlled values.
func (t *Tree) Snapshot() *domain.Snapshot {
	return t.runtime.Snapshot()
}

// Restore applies a snapshot as a silent sync.
func (t *Tree) Restore(s *domain.Snapshot) error {
	return t.runtime.Restore(s)
}

// Get returns the projection of v.
func (t *Tree) Get(v domain.Value) (domain.NodeView, error) {
	return t.runtime.Get(v)
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return t.runtime.Len()
}

// Roots returns the root projections.
func (t *Tree) Roots() []domain.NodeView {
	return t.runtime.Roots()
}

// Children returns the loaded children of v.
func (t *Tree) Children(v domain.Value) ([]domain.NodeView, error) {
	return t.runtime.Children(v)
}

// Ancestors returns the ancestors of v, nearest first.
func (t *Tree) Ancestors(v domain.Value) ([]domain.NodeView, error) {
	return t.runtime.Ancestors(v)
}

// Descendants returns the descendants of v in depth-first order.
func (t *Tree) Descendants(v domain.Value) ([]domain.NodeView, error) {
	return t.runtime.Descendants(v)
}

// Visible returns the projection of every visible node in display order.
func (t *Tree) Visible() []domain.NodeView {
	return t.runtime.Visible()
}

// Nodes returns the projection of every node in depth-first order.
func (t *Tree) Nodes() []domain.NodeView {
	return t.runtime.Nodes()
}

// Checked returns the visible checked set.
func (t *Tree) Checked() []domain.Value {
	return t.runtime.Checked()
}

// Expanded returns the expanded set.
func (t *Tree) Expanded() []domain.Value {
	return t.runtime.Expanded()
}

// Activated returns the activated set.
func (t *Tree) Activated() []domain.Value {
	return t.runtime.Activated()
}

// MaxExceeded reports whether the visible checked set has reached the cap.
func (t *Tree) MaxExceeded() bool {
	return t.runtime.MaxExceeded()
}

// On subscribes to an event type. The returned function unsubscribes.
func (t *Tree) On(eventType domain.EventType, handler domain.Handler) func() {
	return t.runtime.On(eventType, handler)
}

// OnAny subscribes to every event type.
func (t *Tree) OnAny(handler domain.Handler) func() {
	return t.runtime.OnAny(handler)
}

// Wait blocks until all lazy loads in flight have settled.
func (t *Tree) Wait() {
	t.runtime.Wait()
}

// Close cancels in-flight loads and waits for them to return.
func (t *Tree) Close() error {
	return t.runtime.Close()
}
