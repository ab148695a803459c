package domain

// Value is the identity of a node. It must be unique within a tree.
// Numeric identities from data files are normalized to their decimal form.
type Value string

// LoadState describes how much of a node's subtree is known.
type LoadState string

const (
	// LoadLeaf marks a node that has no children and cannot load any.
	LoadLeaf LoadState = "leaf"
	// LoadUnresolved marks a node whose children must be fetched by a ChildLoader.
	LoadUnresolved LoadState = "unresolved"
	// LoadLoading marks a node with a fetch in flight.
	LoadLoading LoadState = "loading"
	// LoadResolved marks a node whose children are known (possibly none).
	LoadResolved LoadState = "resolved"
)

// NodeSpec is the description of a node supplied by the host (data) or by a ChildLoader.
//
// Children semantics follow the data format:
//   - Lazy=true ("children: true") means loadable but not yet resolved;
//   - a nil Children slice with Lazy=false is a leaf;
//   - a non-nil, empty Children slice is a resolved node without children.
type NodeSpec struct {
	Value    Value      `json:"value" yaml:"value" mapstructure:"value"`
	Label    string     `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Disabled bool       `json:"disabled,omitempty" yaml:"disabled,omitempty" mapstructure:"disabled"`
	Lazy     bool       `json:"lazy,omitempty" yaml:"lazy,omitempty" mapstructure:"lazy"`
	Children []NodeSpec `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`

	// ExpandMutex makes the children of this node mutually exclusive when expanding.
	ExpandMutex bool `json:"expand_mutex,omitempty" yaml:"expand_mutex,omitempty" mapstructure:"expand_mutex"`

	// Data carries arbitrary host payload, untouched by the engine.
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
}

// Flags is the per-node state tracked by the engines.
type Flags struct {
	Checked       bool `json:"checked"`
	Indeterminate bool `json:"indeterminate"`
	Expanded      bool `json:"expanded"`
	Activated     bool `json:"activated"`
	Loading       bool `json:"loading"`
}

// NodeView is the read-only projection of a node handed to the presentation layer.
// It is a copy; mutating it has no effect on the tree.
type NodeView struct {
	Value     Value          `json:"value"`
	Label     string         `json:"label,omitempty"`
	Level     int            `json:"level"`
	Parent    Value          `json:"parent,omitempty"`
	Disabled  bool           `json:"disabled,omitempty"`
	Leaf      bool           `json:"leaf"`
	LoadState LoadState      `json:"load_state"`
	Data      map[string]any `json:"data,omitempty"`
	Flags
}

// HasParent reports whether the node is not a root.
func (n NodeView) HasParent() bool {
	return n.Level > 0
}

// ItemPatch is the imperative "set this node's flags" request.
// Nil fields are left untouched.
type ItemPatch struct {
	Checked   *bool `json:"checked,omitempty"`
	Expanded  *bool `json:"expanded,omitempty"`
	Activated *bool `json:"activated,omitempty"`
}

// ValueMode selects which checked nodes make up the externally visible checked set.
type ValueMode string

const (
	// ValueModeOnlyLeaf exposes checked nodes without children.
	ValueModeOnlyLeaf ValueMode = "onlyLeaf"
	// ValueModeParentFirst exposes the topmost checked node of every checked subtree.
	ValueModeParentFirst ValueMode = "parentFirst"
	// ValueModeAll exposes every checked node.
	ValueModeAll ValueMode = "all"
)

// Valid reports whether m is a known value mode.
func (m ValueMode) Valid() bool {
	switch m {
	case ValueModeOnlyLeaf, ValueModeParentFirst, ValueModeAll:
		return true
	}
	return false
}

// Values converts plain strings to identities.
func Values(s ...string) []Value {
	out := make([]Value, len(s))
	for i, v := range s {
		out[i] = Value(v)
	}
	return out
}

// Strings converts identities to plain strings.
func Strings(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
