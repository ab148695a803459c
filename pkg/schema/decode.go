package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Options holds the tree options a data file may carry.
type Options struct {
	ValueMode      domain.ValueMode `mapstructure:"value_mode" yaml:"value_mode,omitempty"`
	Max            int              `mapstructure:"max" yaml:"max,omitempty"`
	CheckStrictly  bool             `mapstructure:"check_strictly" yaml:"check_strictly,omitempty"`
	ActiveMultiple bool             `mapstructure:"active_multiple" yaml:"active_multiple,omitempty"`
	Lazy           *bool            `mapstructure:"lazy" yaml:"lazy,omitempty"`
	ExpandAll      bool             `mapstructure:"expand_all" yaml:"expand_all,omitempty"`
	ExpandLevel    int              `mapstructure:"expand_level" yaml:"expand_level,omitempty"`
	ExpandMutex    bool             `mapstructure:"expand_mutex" yaml:"expand_mutex,omitempty"`
	Checked        []domain.Value   `mapstructure:"checked" yaml:"checked,omitempty"`
	Expanded       []domain.Value   `mapstructure:"expanded" yaml:"expanded,omitempty"`
	Active         []domain.Value   `mapstructure:"active" yaml:"active,omitempty"`
}

// Document is a decoded data file.
type Document struct {
	Options Options           `mapstructure:"options" yaml:"options,omitempty"`
	Fields  map[string]string `mapstructure:"fields" yaml:"fields,omitempty"`
	Nodes   []domain.NodeSpec `mapstructure:"nodes" yaml:"nodes"`
}

// Load reads and decodes the data file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode reads a whole data file from r.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML or JSON data file.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}

	var doc Document
	switch v := raw.(type) {
	case nil:
		return &doc, nil
	case []any:
		raw = map[string]any{"nodes": v}
	case map[string]any:
	default:
		return nil, fmt.Errorf("data file must be a list of nodes or a mapping, got %T", raw)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       nodeHook,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &doc,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode data file: %w", err)
	}

	if mode := doc.Options.ValueMode; mode != "" && !mode.Valid() {
		return nil, &ValidationError{Key: "value_mode", Reason: fmt.Sprintf("unknown value mode %q", mode)}
	}
	fields, err := ParseFields(doc.Fields)
	if err != nil {
		return nil, err
	}
	if err := ValidateTree(fields, doc.Nodes); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseNodes decodes a data file and returns only its nodes.
func ParseNodes(data []byte) ([]domain.NodeSpec, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Nodes, nil
}

// Marshal encodes doc as YAML.
func Marshal(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

var specType = reflect.TypeOf(domain.NodeSpec{})

// nodeHook rewrites raw node mappings: "children: true" becomes a lazy node,
// "children: false" a leaf, and unknown keys move into data.
func nodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != specType {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}

	out := make(map[string]any, len(m))
	extra := make(map[string]any)
	for k, v := range m {
		switch k {
		case "children":
			switch c := v.(type) {
			case bool:
				if c {
					out["lazy"] = true
				}
			case nil:
			default:
				out[k] = v
			}
		case "value", "label", "disabled", "lazy", "expand_mutex":
			out[k] = v
		case "data":
			d, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("node %v: data must be a mapping", m["value"])
			}
			for dk, dv := range d {
				extra[dk] = dv
			}
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		out["data"] = extra
	}
	return out, nil
}
