/*
Package observability provides tools for monitoring canopy trees.

Metrics turns the event stream into Prometheus collectors, and LogHooks audits
events through a structured logger. Both plug into a tree as domain.Hooks.
*/
package observability
