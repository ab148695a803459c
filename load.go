package canopy

import (
	"github.com/aretw0/canopy/pkg/schema"
)

// OptionsFrom converts the options block of a data file into tree options.
func OptionsFrom(o schema.Options) []Option {
	opts := []Option{
		WithMax(o.Max),
		WithCheckStrictly(o.CheckStrictly),
		WithActiveMultiple(o.ActiveMultiple),
	}
	if o.ValueMode != "" {
		opts = append(opts, WithValueMode(o.ValueMode))
	}
	if o.Lazy != nil {
		opts = append(opts, WithLazy(*o.Lazy))
	}
	if o.ExpandAll {
		opts = append(opts, WithExpandAll())
	}
	if o.ExpandLevel > 0 {
		opts = append(opts, WithExpandLevel(o.ExpandLevel))
	}
	if o.ExpandMutex {
		opts = append(opts, WithExpandMutex())
	}
	if len(o.Checked) > 0 {
		opts = append(opts, WithCheckedValue(o.Checked...))
	}
	if len(o.Expanded) > 0 {
		opts = append(opts, WithExpandedValue(o.Expanded...))
	}
	if len(o.Active) > 0 {
		opts = append(opts, WithActiveValue(o.Active...))
	}
	return opts
}

// FromDocument builds a tree from a decoded data file. Options given here are
// applied after the file's own, so callers can override them.
func FromDocument(doc *schema.Document, opts ...Option) (*Tree, error) {
	all := append(OptionsFrom(doc.Options), opts...)
	return New(doc.Nodes, all...)
}

// Open loads a YAML or JSON data file and builds a tree from it.
func Open(path string, opts ...Option) (*Tree, error) {
	doc, err := schema.Load(path)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, opts...)
}
