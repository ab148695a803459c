package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateIdentity is returned when a batch reuses an identity, or places an existing
// identity under a different parent. It is a configuration error and must not be retried.
var ErrDuplicateIdentity = errors.New("duplicate identity")

// ErrCycleDetected is returned when a description nests one of its own ancestors.
var ErrCycleDetected = errors.New("cycle detected")

// ErrEmptyIdentity is returned when a node description has no value.
var ErrEmptyIdentity = errors.New("empty identity")

// ErrLimitExceeded is returned when a check operation would push the checked set past max.
// No state is mutated when it is returned.
var ErrLimitExceeded = errors.New("selection limit exceeded")

// ErrLoadFailure is returned (asynchronously) when a lazy load fails.
var ErrLoadFailure = errors.New("load failure")

// ErrNodeNotFound is returned when an identity is not present in the tree.
var ErrNodeNotFound = errors.New("node not found")

// ErrNotExpandable is returned when expanding a leaf.
var ErrNotExpandable = errors.New("node is not expandable")

// ErrSnapshotNotFound is returned when a session id cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// IdentityError ties a failure to the node identity that caused it.
type IdentityError struct {
	Value Value
	Err   error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Value)
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}

// LoadError describes a failed lazy load. It matches both ErrLoadFailure and the cause.
type LoadError struct {
	Value Value
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load children of %q: %v", e.Value, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailure, e.Err}
}

// LimitError reports a rejected selection together with the numbers involved.
type LimitError struct {
	Max       int
	Requested int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %d checked, max %d", ErrLimitExceeded, e.Requested, e.Max)
}

func (e *LimitError) Unwrap() error {
	return ErrLimitExceeded
}
