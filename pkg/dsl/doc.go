/*
Package dsl provides a fluent builder for constructing canopy trees in Go.

It is an alternative to YAML or JSON data files, useful for generated trees and for tests.
Children declared under a lazy node are not part of the initial data; the built
in-memory loader serves them when the node is expanded.

Example usage:

	b := dsl.New()
	b.Add("t1").Label("Node 1").Leaves("1", "2")
	b.Add("t2").Label("Node 2").Lazy().Leaves("t2.1", "t2.2")

	tree, err := b.Build()
	if err != nil {
		return err
	}
	t, err := canopy.New(tree.Nodes, canopy.WithLoader(tree.Loader))
*/
package dsl
