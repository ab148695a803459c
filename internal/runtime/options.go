package runtime

import (
	"context"
	"log/slog"

	"github.com/aretw0/canopy/internal/events"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// Config holds the behavior switches of a tree.
type Config struct {
	CheckStrictly  bool
	ValueMode      domain.ValueMode
	Max            int
	ActiveMultiple bool
	// Lazy defers loading unresolved nodes until they are expanded. When false,
	// every unresolved node is loaded as soon as it is inserted.
	Lazy        bool
	ExpandAll   bool
	ExpandLevel int
	ExpandMutex bool

	CheckedValue  []domain.Value
	ExpandedValue []domain.Value
	ActiveValue   []domain.Value
}

// DefaultConfig returns the defaults: onlyLeaf values, lazy loading, no limit.
func DefaultConfig() Config {
	return Config{
		ValueMode: domain.ValueModeOnlyLeaf,
		Lazy:      true,
	}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConfig replaces the engine configuration.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLoader sets the child loader used for lazy nodes.
func WithLoader(loader ports.ChildLoader) EngineOption {
	return func(e *Engine) {
		e.loader = loader
	}
}

// WithEmitter shares an emitter instead of creating one.
func WithEmitter(emitter *events.Emitter) EngineOption {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// WithContext sets the context handed to event handlers and, until Close, to loaders.
func WithContext(ctx context.Context) EngineOption {
	return func(e *Engine) {
		if ctx != nil {
			e.base = ctx
		}
	}
}
