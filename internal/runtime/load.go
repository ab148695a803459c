package runtime

import (
	"errors"

	"github.com/aretw0/canopy/internal/events"
	"github.com/aretw0/canopy/internal/expansion"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/sourcegraph/conc/panics"
)

func (e *Engine) start(loads []expansion.Load) {
	for _, l := range loads {
		e.wg.Go(func() { e.runLoad(l) })
	}
}

func (e *Engine) runLoad(l expansion.Load) {
	children, err := e.fetch(l.Node)
	_ = e.do(func(b *events.Batch) error {
		e.settle(b, l, children, err)
		return nil
	})
}

// fetch calls the loader, turning a panic into a load failure.
func (e *Engine) fetch(node domain.NodeView) (children []domain.NodeSpec, err error) {
	if e.loader == nil {
		return nil, ErrNoLoader
	}
	var pc panics.Catcher
	pc.Try(func() {
		children, err = e.loader.LoadChildren(e.loadCtx, node)
	})
	if r := pc.Recovered(); r != nil {
		return nil, r.AsError()
	}
	return children, err
}

func (e *Engine) settle(b *events.Batch, l expansion.Load, children []domain.NodeSpec, loadErr error) {
	v := l.Node.Value
	st, err := e.exp.Settle(v, l.Token, children, loadErr)
	if err != nil {
		var le *domain.LoadError
		if !errors.As(err, &le) {
			e.logger.Debug("discarding stale load", "node", v)
			return
		}
		e.logger.Warn("load failed", "node", v, "elapsed", st.Elapsed, "error", err)
		ev := e.event(domain.EventLoadError, nil, st.Node, domain.TriggerLoad)
		ev.Err = err
		ev.Elapsed = st.Elapsed
		b.Add(ev)
		return
	}

	inherited := e.sel.Inherit(v, st.Added)
	e.eager(st.Added, st.Silent)
	node := e.view(v)
	e.logger.Debug("children loaded", "node", v, "count", len(st.Added), "elapsed", st.Elapsed)

	ev := e.event(domain.EventLoad, st.Added, node, domain.TriggerLoad)
	ev.Elapsed = st.Elapsed
	b.Add(ev)
	if st.Silent {
		return
	}
	if inherited.Changed {
		b.Add(e.event(domain.EventChange, inherited.Value, node, domain.TriggerLoad))
	}
	if st.Expanded {
		b.Add(e.event(domain.EventExpand, e.exp.Value(), node, domain.TriggerLoad))
	}
}
