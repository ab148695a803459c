package ports

import "github.com/aretw0/canopy/pkg/domain"

// TreeEngine is the surface adapters (HTTP, MCP) drive.
// It is implemented by *canopy.Tree.
type TreeEngine interface {
	// Visible returns the projection of every visible node in display order.
	Visible() []domain.NodeView

	// Nodes returns the projection of every node in depth-first order.
	Nodes() []domain.NodeView

	// Get returns the projection of a single node.
	Get(value domain.Value) (domain.NodeView, error)

	// SetItem applies an imperative flag patch through the engines.
	SetItem(value domain.Value, patch domain.ItemPatch) error

	// Snapshot returns the current controlled values.
	Snapshot() *domain.Snapshot

	// Restore applies controlled values without emitting change/expand/active events.
	Restore(snapshot *domain.Snapshot) error

	// On subscribes to an event type. The returned function unsubscribes.
	On(eventType domain.EventType, handler domain.Handler) func()
}

// Waiter is implemented by engines with asynchronous work (lazy loads).
type Waiter interface {
	Wait()
}
