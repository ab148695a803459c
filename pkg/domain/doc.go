/*
Package domain contains the core models of the canopy selection engine.

It defines node descriptions, the read-only node projection, the events delivered to
hosts and the sentinel errors of the engine. This package is kept pure and free of
external dependencies like I/O or persistence.

# Key Entities

  - NodeSpec: the host-supplied description of a node (data or lazily loaded children).
  - NodeView: the read-only projection used for rendering.
  - Event: change, expand, active and load notifications with their node context.
  - Snapshot: the checked/expanded/activated identity lists, as persisted by stores.
*/
package domain
