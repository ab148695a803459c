package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/muesli/termenv"
)

// Renderer draws tree nodes as indented text with checkbox and expansion markers.
type Renderer struct {
	out    *termenv.Output
	indent string
}

// NewRenderer returns a renderer writing to w. Colors follow the terminal's profile;
// pass termenv.Ascii to force plain text.
func NewRenderer(w io.Writer, opts ...termenv.OutputOption) *Renderer {
	return &Renderer{out: termenv.NewOutput(w, opts...), indent: "  "}
}

// Render writes one line per node, in the given order.
func (r *Renderer) Render(nodes []domain.NodeView) {
	for _, n := range nodes {
		fmt.Fprintln(r.out, r.Line(n))
	}
}

// Line formats a single node: indentation, expansion marker, checkbox, label.
func (r *Renderer) Line(n domain.NodeView) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat(r.indent, n.Level))

	switch {
	case n.Loading:
		sb.WriteString("⟳ ")
	case n.Leaf:
		sb.WriteString("  ")
	case n.Expanded:
		sb.WriteString("▾ ")
	default:
		sb.WriteString("▸ ")
	}

	box := "[ ]"
	switch {
	case n.Checked:
		box = r.out.String("[x]").Foreground(r.out.Color("#22c55e")).String()
	case n.Indeterminate:
		box = r.out.String("[-]").Foreground(r.out.Color("#eab308")).String()
	}
	sb.WriteString(box)
	sb.WriteString(" ")

	label := n.Label
	if label == "" {
		label = string(n.Value)
	}
	styled := r.out.String(label)
	if n.Activated {
		styled = styled.Bold().Underline()
	}
	if n.Disabled {
		styled = styled.Faint()
	}
	sb.WriteString(styled.String())
	return sb.String()
}
