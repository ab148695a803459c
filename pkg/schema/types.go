package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type validates one field of a node data payload.
type Type interface {
	// Name returns the type as written in a data file (e.g. "string", "[int]", "bool?").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type scalar struct {
	name string
	ok   func(any) bool
}

func (s scalar) Name() string { return s.name }

func (s scalar) Validate(value any) error {
	if !s.ok(value) {
		return fmt.Errorf("expected %s, got %T", s.name, value)
	}
	return nil
}

func isInt(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == float64(int64(n))
	}
	return false
}

// String accepts strings.
func String() Type {
	return scalar{"string", func(v any) bool { _, ok := v.(string); return ok }}
}

// Int accepts integers and whole floats.
func Int() Type {
	return scalar{"int", isInt}
}

// Float accepts any number.
func Float() Type {
	return scalar{"float", func(v any) bool {
		switch v.(type) {
		case float32, float64:
			return true
		}
		return isInt(v)
	}}
}

// Bool accepts booleans.
func Bool() Type {
	return scalar{"bool", func(v any) bool { _, ok := v.(bool); return ok }}
}

// Any accepts every value.
func Any() Type {
	return scalar{"any", func(any) bool { return true }}
}

type list struct {
	elem Type
}

// List accepts slices whose elements all match elem.
func List(elem Type) Type {
	return list{elem: elem}
}

func (l list) Name() string { return "[" + l.elem.Name() + "]" }

func (l list) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %s, got %T", l.Name(), value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := l.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type optional struct {
	Type
}

// Optional marks a field that may be absent.
func Optional(t Type) Type {
	return optional{Type: t}
}

func (o optional) Name() string { return o.Type.Name() + "?" }

// IsOptional reports whether t may be absent from a payload.
func IsOptional(t Type) bool {
	_, ok := t.(optional)
	return ok
}

// Custom creates a type with a user-defined check.
func Custom(name string, validate func(any) error) Type {
	return custom{name: name, validate: validate}
}

type custom struct {
	name     string
	validate func(any) error
}

func (c custom) Name() string             { return c.name }
func (c custom) Validate(value any) error { return c.validate(value) }

// ParseType converts a type name such as "int", "[string]" or "bool?" to a Type.
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if rest, ok := strings.CutSuffix(name, "?"); ok {
		t, err := ParseType(rest)
		if err != nil {
			return nil, err
		}
		return Optional(t), nil
	}
	if len(name) > 2 && name[0] == '[' && name[len(name)-1] == ']' {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return List(elem), nil
	}
	switch name {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "any":
		return Any(), nil
	}
	return nil, fmt.Errorf("unsupported type: %s", name)
}

// Fields maps data keys to their types.
type Fields map[string]Type

// ParseFields converts a map of keys to type names.
func ParseFields(raw map[string]string) (Fields, error) {
	out := make(Fields, len(raw))
	for key, name := range raw {
		t, err := ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		out[key] = t
	}
	return out, nil
}
