package tests

import (
	"context"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// ChildLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.ChildLoader.
// setupData maps a parent identity to the children the loader is expected to return.
func ChildLoaderContractTest(t *testing.T, loader ports.ChildLoader, setupData map[domain.Value][]domain.Value) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadChildren_Success", func(t *testing.T) {
		for parent, expected := range setupData {
			children, err := loader.LoadChildren(ctx, domain.NodeView{Value: parent})
			if err != nil {
				t.Fatalf("unexpected error loading children of %s: %v", parent, err)
			}
			if len(children) != len(expected) {
				t.Fatalf("children count mismatch for %s. got %d, want %d", parent, len(children), len(expected))
			}
			for i, child := range children {
				if child.Value != expected[i] {
					t.Errorf("child %d of %s: got %q, want %q", i, parent, child.Value, expected[i])
				}
			}
		}
	})

	t.Run("LoadChildren_Unknown", func(t *testing.T) {
		_, err := loader.LoadChildren(ctx, domain.NodeView{Value: "non-existent-node"})
		if err == nil {
			t.Error("expected error for unknown node, got nil")
		}
	})

	t.Run("LoadChildren_Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		for parent := range setupData {
			if _, err := loader.LoadChildren(cctx, domain.NodeView{Value: parent}); err == nil {
				t.Errorf("expected error for cancelled context on %s, got nil", parent)
			}
			return
		}
	})
}
