package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// ValidationError represents a single problem found in a data file.
type ValidationError struct {
	Node   domain.Value // Node the problem belongs to, empty for document-level problems
	Key    string       // Field name
	Reason string       // Human-readable reason for failure
	Value  any          // The value that failed validation
	Err    error        // Sentinel cause, if any
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Node != "" {
		fmt.Fprintf(&b, "node %q: ", e.Node)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, "field %q: ", e.Key)
	}
	b.WriteString(e.Reason)
	if e.Value != nil {
		fmt.Fprintf(&b, " (got %T)", e.Value)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
