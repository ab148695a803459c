/*
Package canopy is a hierarchical selection and expansion state engine for tree, checkbox-group and transfer widgets.

It tracks checked, indeterminate, expanded, activated and loading flags over a forest of nodes, cascades checked state between parents and children, enforces selection limits, resolves lazy subtrees through an asynchronous loader and reports every change as an event. Rendering is left to the host: Canopy exposes read-only projections and an event stream.

# Concept

A Tree owns a NodeStore keyed by node identity (domain.Value). Three engines mutate it through store operations only:

  - Selection: checked state with cascade, indeterminate derivation and a cap (max).
  - Expansion: expand state and lazy-load bookkeeping.
  - Activation: the activated set, exclusive by default.

Every operation runs to completion under one lock. Events are dispatched afterwards, so handlers may call back into the tree.

# Usage

	tree, err := canopy.New([]domain.NodeSpec{
		{Value: "t1", Children: []domain.NodeSpec{{Value: "t1.1"}}},
		{Value: "t2", Lazy: true},
	}, canopy.WithLoader(loader), canopy.WithMax(10))
	if err != nil {
		log.Fatal(err)
	}
	defer tree.Close()

	tree.On(domain.EventChange, func(ctx context.Context, e *domain.Event) {
		fmt.Println("checked:", e.Values)
	})

	_, _ = tree.SetChecked("t1", true)
	_ = tree.SetExpanded("t2", true) // starts a lazy load
	tree.Wait()

# Controlled values

Hosts that own the checked, expanded or activated lists call SyncChecked, SyncExpanded and SyncActivated. A sync never emits change, expand or active events. Snapshot and Restore move all three lists at once; pkg/session persists them.

# Widgets

pkg/group implements a checkbox group with a check-all option and pkg/transfer implements source/target transfer lists. Both reuse the same selection rules through a synthetic root.

# Data files

Open builds a tree from a YAML or JSON file decoded by pkg/schema; the file's options block maps onto the functional options. The canopy command (cmd/canopy) inspects, validates and serves such files.
*/
package canopy
