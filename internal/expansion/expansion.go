package expansion

import (
	"time"

	"github.com/aretw0/canopy/internal/store"
	"github.com/aretw0/canopy/pkg/domain"
)

// Outcome describes what an expand or collapse request did.
type Outcome int

const (
	Noop Outcome = iota
	Expanded
	Collapsed
	LoadStarted
)

func (o Outcome) String() string {
	switch o {
	case Expanded:
		return "expanded"
	case Collapsed:
		return "collapsed"
	case LoadStarted:
		return "load_started"
	default:
		return "noop"
	}
}

// Config controls expand behavior.
type Config struct {
	// Mutex makes every sibling group mutually exclusive, not only those whose parent asks for it.
	Mutex bool
}

// Load is a lazy load the caller must run and later settle.
type Load struct {
	Node  domain.NodeView
	Token uint64
}

// Change is the result of Expand or Collapse.
type Change struct {
	Outcome Outcome
	// Collapsed lists mutex siblings collapsed as a side effect.
	Collapsed []domain.Value
	// Load is set when Outcome is LoadStarted.
	Load *Load
}

// Settlement is the result of applying a finished load.
type Settlement struct {
	Node      domain.NodeView
	Added     []domain.Value
	Expanded  bool
	Collapsed []domain.Value
	// Silent is true when the load was started by a controlled value sync.
	Silent  bool
	Elapsed time.Duration
}

type pending struct {
	token   uint64
	want    bool
	silent  bool
	started time.Time
}

// Engine owns expand state and the bookkeeping of in-flight lazy loads.
type Engine struct {
	store   *store.Store
	cfg     Config
	pending map[domain.Value]*pending
	next    uint64
	now     func() time.Time
}

// New creates an expansion engine over s.
func New(s *store.Store, cfg Config) *Engine {
	return &Engine{
		store:   s,
		cfg:     cfg,
		pending: make(map[domain.Value]*pending),
		now:     time.Now,
	}
}

// Expand expands v. Unresolved nodes are marked loading and a Load is returned;
// expanding a node already loading only records that it should open when settled.
func (e *Engine) Expand(v domain.Value, silent bool) (Change, error) {
	if !e.store.Has(v) {
		return Change{}, &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
	}

	switch e.store.LoadState(v) {
	case domain.LoadUnresolved:
		load := e.begin(v, true, silent)
		return Change{Outcome: LoadStarted, Load: &load}, nil
	case domain.LoadLoading:
		if p, ok := e.pending[v]; ok {
			p.want = true
		}
		return Change{Outcome: Noop}, nil
	}

	if !e.store.Expandable(v) {
		return Change{}, &domain.IdentityError{Value: v, Err: domain.ErrNotExpandable}
	}
	if e.store.Flags(v).Expanded {
		return Change{Outcome: Noop}, nil
	}
	e.store.SetExpanded(v, true)
	return Change{Outcome: Expanded, Collapsed: e.collapseSiblings(v)}, nil
}

// Collapse collapses v. Descendants keep their flags and loaded children.
// While v is loading, collapsing only withdraws the pending expand.
func (e *Engine) Collapse(v domain.Value) (Change, error) {
	if !e.store.Has(v) {
		return Change{}, &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
	}
	if p, ok := e.pending[v]; ok {
		p.want = false
	}
	if !e.store.Flags(v).Expanded {
		return Change{Outcome: Noop}, nil
	}
	e.store.SetExpanded(v, false)
	return Change{Outcome: Collapsed}, nil
}

func (e *Engine) begin(v domain.Value, want, silent bool) Load {
	e.next++
	e.pending[v] = &pending{token: e.next, want: want, silent: silent, started: e.now()}
	e.store.SetLoadState(v, domain.LoadLoading)
	node, _ := e.store.Get(v)
	return Load{Node: node, Token: e.next}
}

// BeginLoad starts loading an unresolved node without expanding it.
func (e *Engine) BeginLoad(v domain.Value, silent bool) (Load, bool) {
	if e.store.LoadState(v) != domain.LoadUnresolved {
		return Load{}, false
	}
	return e.begin(v, false, silent), true
}

// Loading reports whether a load is in flight for v.
func (e *Engine) Loading(v domain.Value) bool {
	_, ok := e.pending[v]
	return ok
}

// Settle applies the outcome of the load identified by token. Children are inserted
// under v by identity, so loads may settle in any order. A loader error or structurally
// invalid children revert v to unresolved and return a *domain.LoadError.
// Settling a load that is no longer pending returns domain.ErrNodeNotFound.
func (e *Engine) Settle(v domain.Value, token uint64, children []domain.NodeSpec, loadErr error) (Settlement, error) {
	p, ok := e.pending[v]
	if !ok || p.token != token || e.store.LoadState(v) != domain.LoadLoading {
		return Settlement{}, &domain.IdentityError{Value: v, Err: domain.ErrNodeNotFound}
	}
	delete(e.pending, v)
	out := Settlement{Silent: p.silent, Elapsed: e.now().Sub(p.started)}

	if loadErr == nil {
		out.Added, loadErr = e.store.Upsert(&v, children)
	}
	if loadErr != nil {
		e.store.SetLoadState(v, domain.LoadUnresolved)
		out.Node, _ = e.store.Get(v)
		return out, &domain.LoadError{Value: v, Err: loadErr}
	}

	e.store.SetLoadState(v, domain.LoadResolved)
	if p.want && e.store.Expandable(v) {
		e.store.SetExpanded(v, true)
		out.Expanded = true
		out.Collapsed = e.collapseSiblings(v)
	}
	out.Node, _ = e.store.Get(v)
	return out, nil
}

// Forget drops load bookkeeping for identities no longer in the store.
func (e *Engine) Forget() {
	for v := range e.pending {
		if e.store.LoadState(v) != domain.LoadLoading {
			delete(e.pending, v)
		}
	}
}

func (e *Engine) mutex(v domain.Value) bool {
	if e.cfg.Mutex {
		return true
	}
	p, ok := e.store.Parent(v)
	return ok && e.store.ExpandMutex(p)
}

func (e *Engine) collapseSiblings(v domain.Value) []domain.Value {
	if !e.mutex(v) {
		return nil
	}
	var out []domain.Value
	for _, sib := range e.store.Siblings(v) {
		if p, ok := e.pending[sib]; ok {
			p.want = false
		}
		if e.store.Flags(sib).Expanded {
			e.store.SetExpanded(sib, false)
			out = append(out, sib)
		}
	}
	return out
}

// ExpandLevel expands every resolved node whose level is below depth. A negative depth
// expands everything. It returns whether any flag changed.
func (e *Engine) ExpandLevel(depth int) bool {
	changed := false
	e.store.Walk(func(n domain.NodeView) bool {
		if depth >= 0 && n.Level >= depth {
			return false
		}
		if !n.Expanded && e.store.SetExpanded(n.Value, true) {
			changed = true
		}
		return true
	})
	return changed
}

// ExpandAll expands every resolved node with children.
func (e *Engine) ExpandAll() bool {
	return e.ExpandLevel(-1)
}

// SetValue makes the expanded set equal values, ignoring mutex groups. Unknown and leaf
// identities are skipped; unresolved ones start silent loads that expand when settled.
func (e *Engine) SetValue(values []domain.Value) (changed bool, loads []Load) {
	want := make(map[domain.Value]struct{}, len(values))
	for _, v := range values {
		want[v] = struct{}{}
	}
	for _, v := range e.store.Order() {
		_, wanted := want[v]
		if !wanted {
			if p, ok := e.pending[v]; ok {
				p.want = false
			}
			if e.store.Flags(v).Expanded {
				e.store.SetExpanded(v, false)
				changed = true
			}
			continue
		}
		switch e.store.LoadState(v) {
		case domain.LoadUnresolved:
			loads = append(loads, e.begin(v, true, true))
		case domain.LoadLoading:
			if p, ok := e.pending[v]; ok {
				p.want = true
			}
		default:
			if !e.store.Flags(v).Expanded && e.store.SetExpanded(v, true) {
				changed = true
			}
		}
	}
	return changed, loads
}

// Value returns every expanded identity in display order.
func (e *Engine) Value() []domain.Value {
	out := []domain.Value{}
	e.store.Walk(func(n domain.NodeView) bool {
		if n.Expanded {
			out = append(out, n.Value)
		}
		return true
	})
	return out
}
