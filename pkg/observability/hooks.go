package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/canopy/pkg/domain"
)

// LogHooks returns hooks that audit every event through logger.
// Load failures are logged at Error level, everything else at Debug.
func LogHooks(logger *slog.Logger) domain.Hooks {
	h := func(ctx context.Context, e *domain.Event) {
		attrs := []any{
			"type", e.Type,
			"node", e.Node.Value,
			"trigger", e.Trigger,
			"values", len(e.Values),
		}
		if e.Elapsed > 0 {
			attrs = append(attrs, "elapsed", e.Elapsed)
		}
		if e.Err != nil {
			logger.ErrorContext(ctx, "tree event", append(attrs, "err", e.Err)...)
			return
		}
		logger.DebugContext(ctx, "tree event", attrs...)
	}
	return domain.Hooks{
		OnChange:    h,
		OnExpand:    h,
		OnActive:    h,
		OnLoad:      h,
		OnLoadError: h,
	}
}

// Merge combines several hook sets so each event reaches every non-nil hook, in order.
func Merge(sets ...domain.Hooks) domain.Hooks {
	join := func(pick func(domain.Hooks) domain.Handler) domain.Handler {
		var fns []domain.Handler
		for _, s := range sets {
			if fn := pick(s); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, e *domain.Event) {
			for _, fn := range fns {
				fn(ctx, e)
			}
		}
	}
	return domain.Hooks{
		OnChange:    join(func(h domain.Hooks) domain.Handler { return h.OnChange }),
		OnExpand:    join(func(h domain.Hooks) domain.Handler { return h.OnExpand }),
		OnActive:    join(func(h domain.Hooks) domain.Handler { return h.OnActive }),
		OnLoad:      join(func(h domain.Hooks) domain.Handler { return h.OnLoad }),
		OnLoadError: join(func(h domain.Hooks) domain.Handler { return h.OnLoadError }),
	}
}
