package schema

import (
	"fmt"
	"slices"

	"github.com/aretw0/canopy/pkg/domain"
)

// ValidateData checks a node data payload against fields.
// Keys absent from fields are accepted. Missing keys fail unless their type is optional.
func ValidateData(fields Fields, data map[string]any) []error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var errs []error
	for _, key := range keys {
		typ := fields[key]
		val, ok := data[key]
		if !ok {
			if !IsOptional(typ) {
				errs = append(errs, &ValidationError{Key: key, Reason: "required field missing"})
			}
			continue
		}
		if err := typ.Validate(val); err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: val})
		}
	}
	return errs
}

// ValidateTree walks specs and collects every identity problem and data payload error.
// It returns nil or an *AggregateError.
func ValidateTree(fields Fields, specs []domain.NodeSpec) error {
	w := walker{fields: fields, seen: make(map[domain.Value]struct{}), path: make(map[domain.Value]struct{})}
	w.walk(specs, "")
	if len(w.errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: w.errs}
}

type walker struct {
	fields Fields
	seen   map[domain.Value]struct{}
	path   map[domain.Value]struct{}
	errs   []error
}

func (w *walker) walk(specs []domain.NodeSpec, parent domain.Value) {
	for i, spec := range specs {
		if spec.Value == "" {
			w.errs = append(w.errs, &ValidationError{
				Node:   parent,
				Key:    "value",
				Reason: fmt.Sprintf("child %d has no value", i),
				Err:    domain.ErrEmptyIdentity,
			})
			continue
		}
		if _, onPath := w.path[spec.Value]; onPath {
			w.errs = append(w.errs, &ValidationError{Node: spec.Value, Reason: "nested inside itself", Err: domain.ErrCycleDetected})
			continue
		}
		if _, dup := w.seen[spec.Value]; dup {
			w.errs = append(w.errs, &ValidationError{Node: spec.Value, Reason: "value used more than once", Err: domain.ErrDuplicateIdentity})
			continue
		}
		w.seen[spec.Value] = struct{}{}

		if len(w.fields) > 0 {
			for _, err := range ValidateData(w.fields, spec.Data) {
				ve := err.(*ValidationError)
				ve.Node = spec.Value
				w.errs = append(w.errs, ve)
			}
		}

		if len(spec.Children) > 0 {
			w.path[spec.Value] = struct{}{}
			w.walk(spec.Children, spec.Value)
			delete(w.path, spec.Value)
		}
	}
}
