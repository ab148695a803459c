package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of the tree, one edge per parent/child link.
// It applies semantic styling:
// - Parent: ([Stadium])
// - Leaf: [Rectangle]
// - Unresolved lazy node: [/Parallelogram/] with a dotted edge to a placeholder
// Checked, indeterminate and activated nodes get matching classes.
func GenerateMermaid(nodes []domain.NodeView) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var checked, partial, active []string
	for _, node := range nodes {
		safeID := sanitizeMermaidID(string(node.Value))
		label := node.Label
		if label == "" {
			label = string(node.Value)
		}
		label = strings.ReplaceAll(label, "\"", "'")

		opener, closer := "[", "]"
		switch {
		case node.LoadState == domain.LoadUnresolved || node.LoadState == domain.LoadLoading:
			opener, closer = "[/", "/]"
		case !node.Leaf:
			opener, closer = "([", "])"
		}
		if node.Disabled {
			label = "🔒 " + label
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		if node.HasParent() {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(string(node.Parent)), safeID))
		}
		if node.LoadState == domain.LoadUnresolved {
			sb.WriteString(fmt.Sprintf("    %s -.-> %s_more[\"…\"]\n", safeID, safeID))
		}

		switch {
		case node.Checked:
			checked = append(checked, safeID)
		case node.Indeterminate:
			partial = append(partial, safeID)
		}
		if node.Activated {
			active = append(active, safeID)
		}
	}

	if len(checked)+len(partial)+len(active) > 0 {
		sb.WriteString("\n    %% State Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef checked fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef partial fill:#fff9c4,stroke:#f9a825,stroke-dasharray: 4 2,color:#000;\n")
		sb.WriteString("    classDef active stroke:#1565c0,stroke-width:4px;\n")
		writeClass(&sb, checked, "checked")
		writeClass(&sb, partial, "partial")
		writeClass(&sb, active, "active")
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	if len(ids) > 0 {
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", strings.Join(ids, ","), class))
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "n" + s
	}
	return s
}
