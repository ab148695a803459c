package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		good     any
		bad      any
	}{
		{"string", "string", "x", 1},
		{"int", "int", 3, 3.5},
		{"float", "float", 3.5, "3.5"},
		{"bool", "bool", true, "true"},
		{"[int]", "[int]", []any{1, 2}, []any{1, "2"}},
		{" [string] ", "[string]", []string{"a"}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := ParseType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, typ.Name())
			assert.NoError(t, typ.Validate(tt.good))
			assert.Error(t, typ.Validate(tt.bad))
		})
	}

	_, err := ParseType("date")
	assert.Error(t, err)
}

func TestOptional(t *testing.T) {
	typ, err := ParseType("int?")
	require.NoError(t, err)
	assert.True(t, IsOptional(typ))
	assert.Equal(t, "int?", typ.Name())
	assert.NoError(t, typ.Validate(2.0))

	errs := ValidateData(Fields{"size": typ, "name": String()}, map[string]any{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `field "name"`)
}

func TestCustom(t *testing.T) {
	even := Custom("even", func(v any) error {
		if n, ok := v.(int); ok && n%2 == 0 {
			return nil
		}
		return errors.New("not even")
	})
	errs := ValidateData(Fields{"n": even}, map[string]any{"n": 3})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "not even")
}
