// Package schema decodes tree data files and validates them before they reach the engine.
//
// A data file is YAML or JSON. It is either a bare list of nodes or a document:
//
//	options:
//	  value_mode: onlyLeaf
//	  max: 3
//	fields:
//	  owner: string
//	  size: int?
//	nodes:
//	  - value: t1
//	    label: Node 1
//	    owner: alice
//	    children:
//	      - value: 1
//	  - value: t2
//	    children: true
//
// "children: true" marks a node whose children are fetched later by a ChildLoader.
// Numeric identities are normalized to strings. Keys a node does not define are
// collected into its Data payload, which is checked against the optional field types.
//
// All problems found in a file are reported together as an *AggregateError.
package schema
