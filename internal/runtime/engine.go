package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/canopy/internal/activation"
	"github.com/aretw0/canopy/internal/events"
	"github.com/aretw0/canopy/internal/expansion"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/selection"
	"github.com/aretw0/canopy/internal/store"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/sourcegraph/conc"
)

// ErrNoLoader is the cause of load failures on trees built without a ChildLoader.
var ErrNoLoader = errors.New("no child loader configured")

// Engine composes the node store and the selection, expansion and activation engines
// behind a single mutex. Events produced by an operation are dispatched after the lock
// is released, so handlers may call back into the engine.
type Engine struct {
	mu     sync.Mutex
	store  *store.Store
	sel    *selection.Engine
	exp    *expansion.Engine
	act    *activation.Engine
	queued []expansion.Load

	emitter *events.Emitter
	loader  ports.ChildLoader
	logger  *slog.Logger
	cfg     Config

	base    context.Context
	loadCtx context.Context
	cancel  context.CancelFunc
	wg      conc.WaitGroup
}

// NewEngine builds an engine over specs. Initial controlled values are applied without
// emitting events; loads they require start immediately.
func NewEngine(specs []domain.NodeSpec, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		cfg:    DefaultConfig(),
		logger: logging.NewNop(),
		base:   context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.emitter == nil {
		e.emitter = events.New(e.logger)
	}

	e.store = store.New()
	if _, err := e.store.Replace(specs); err != nil {
		return nil, fmt.Errorf("invalid tree data: %w", err)
	}
	e.sel = selection.New(e.store, selection.Config{
		CheckStrictly: e.cfg.CheckStrictly,
		ValueMode:     e.cfg.ValueMode,
		Max:           e.cfg.Max,
	})
	e.exp = expansion.New(e.store, expansion.Config{Mutex: e.cfg.ExpandMutex})
	e.act = activation.New(e.store, e.cfg.ActiveMultiple)
	e.loadCtx, e.cancel = context.WithCancel(e.base)

	if e.cfg.CheckedValue != nil {
		if _, unknown, err := e.sel.SetValue(e.cfg.CheckedValue); err != nil {
			return nil, fmt.Errorf("initial checked value: %w", err)
		} else if len(unknown) > 0 {
			e.logger.Debug("ignoring unknown checked values", "values", unknown)
		}
	}
	e.sel.Recompute(nil, nil)
	if e.cfg.ActiveValue != nil {
		e.act.Replace(e.cfg.ActiveValue)
	}
	switch {
	case e.cfg.ExpandAll:
		e.exp.ExpandAll()
	case e.cfg.ExpandLevel > 0:
		e.exp.ExpandLevel(e.cfg.ExpandLevel)
	}
	if e.cfg.ExpandedValue != nil {
		_, loads := e.exp.SetValue(e.cfg.ExpandedValue)
		e.queued = append(e.queued, loads...)
	}
	e.eager(e.store.Order(), false)

	loads := e.queued
	e.queued = nil
	e.start(loads)

	e.logger.Debug("tree initialized", "nodes", e.store.Len(), "lazy", e.cfg.Lazy)
	return e, nil
}

// Emitter returns the event emitter.
func (e *Engine) Emitter() *events.Emitter {
	return e.emitter
}

// do runs fn under the lock, then dispatches collected events and starts queued loads.
func (e *Engine) do(fn func(b *events.Batch) error) error {
	var b events.Batch
	e.mu.Lock()
	err := fn(&b)
	loads := e.queued
	e.queued = nil
	e.mu.Unlock()

	b.Flush(e.base, e.emitter)
	e.start(loads)
	return err
}

func (e *Engine) event(t domain.EventType, values []domain.Value, node domain.NodeView, trigger domain.Trigger) *domain.Event {
	return &domain.Event{
		Timestamp: time.Now(),
		Type:      t,
		Values:    slices.Clone(values),
		Node:      node,
		Trigger:   trigger,
	}
}

func (e *Engine) view(v domain.Value) domain.NodeView {
	n, _ := e.store.Get(v)
	return n
}

// eager starts loads for unresolved nodes among values when the tree is not lazy.
func (e *Engine) eager(values []domain.Value, silent bool) {
	if e.cfg.Lazy {
		return
	}
	for _, v := range values {
		if l, ok := e.exp.BeginLoad(v, silent); ok {
			e.queued = append(e.queued, l)
		}
	}
}

// SetChecked checks or unchecks v. cascade is ignored in strict mode.
func (e *Engine) SetChecked(v domain.Value, checked, cascade bool) (selection.Result, error) {
	var res selection.Result
	err := e.do(func(b *events.Batch) error {
		var err error
		res, err = e.setChecked(b, v, checked, cascade)
		return err
	})
	return res, err
}

func (e *Engine) setChecked(b *events.Batch, v domain.Value, checked, cascade bool) (selection.Result, error) {
	res, err := e.sel.SetChecked(v, checked, cascade)
	if err != nil {
		if errors.Is(err, domain.ErrLimitExceeded) {
			e.logger.Warn("selection rejected", "node", v, "error", err)
		}
		return res, err
	}
	e.logger.Debug("checked", "node", v, "checked", checked, "count", len(res.Value))
	if res.Changed {
		b.Add(e.event(domain.EventChange, res.Value, res.Node, domain.TriggerAPI))
	}
	return res, nil
}

// SetExpanded expands or collapses v. Expanding an unresolved node starts a load and
// the expand event follows the load event once it settles.
func (e *Engine) SetExpanded(v domain.Value, expanded bool) error {
	return e.do(func(b *events.Batch) error {
		return e.setExpanded(b, v, expanded)
	})
}

func (e *Engine) setExpanded(b *events.Batch, v domain.Value, expanded bool) error {
	var (
		c   expansion.Change
		err error
	)
	if expanded {
		c, err = e.exp.Expand(v, false)
	} else {
		c, err = e.exp.Collapse(v)
	}
	if err != nil {
		return err
	}

	switch c.Outcome {
	case expansion.LoadStarted:
		e.logger.Debug("load started", "node", v)
		e.queued = append(e.queued, *c.Load)
	case expansion.Expanded, expansion.Collapsed:
		e.logger.Debug("expand state changed", "node", v, "outcome", c.Outcome, "collapsed", c.Collapsed)
		b.Add(e.event(domain.EventExpand, e.exp.Value(), e.view(v), domain.TriggerAPI))
	}
	return nil
}

// SetActivated activates or deactivates v.
func (e *Engine) SetActivated(v domain.Value, activated bool) error {
	return e.do(func(b *events.Batch) error {
		return e.setActivated(b, v, activated)
	})
}

func (e *Engine) setActivated(b *events.Batch, v domain.Value, activated bool) error {
	changed, err := e.act.Set(v, activated)
	if err != nil {
		return err
	}
	if changed {
		b.Add(e.event(domain.EventActive, e.act.Value(), e.view(v), domain.TriggerAPI))
	}
	return nil
}

// SetItem applies patch to v through the engines: checked (with cascade), then expanded,
// then activated. It stops at the first failing field; earlier fields stay applied.
func (e *Engine) SetItem(v domain.Value, patch domain.ItemPatch) error {
	return e.do(func(b *events.Batch) error {
		if !e.store.Has(v) {
			return &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
		}
		if patch.Checked != nil {
			if _, err := e.setChecked(b, v, *patch.Checked, true); err != nil {
				return err
			}
		}
		if patch.Expanded != nil {
			if err := e.setExpanded(b, v, *patch.Expanded); err != nil {
				return err
			}
		}
		if patch.Activated != nil {
			if err := e.setActivated(b, v, *patch.Activated); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetMax changes the selection cap.
func (e *Engine) SetMax(max int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Max = max
	e.sel.SetMax(max)
}

// Wait blocks until every in-flight load has settled, including loads started by settling ones.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels the loader context and waits for in-flight loads.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}
