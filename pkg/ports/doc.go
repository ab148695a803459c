/*
Package ports defines the driven ports (interfaces) of the canopy engine.

These interfaces decouple the engine from external implementations, allowing it to fetch
lazy subtrees from any data source and persist controlled values in various backends.

# Key Interfaces

  - ChildLoader: fetches the children of lazily loaded nodes.
  - SnapshotStore: persists checked/expanded/activated identity lists per session.
  - DistributedLocker: provides distributed locking for concurrent session access.
  - TreeEngine: the tree surface driven by the HTTP and MCP adapters.
*/
package ports
