package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the canopy ASCII art banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Green/Teal)
	lines := []struct{ text, color string }{
		{"   ___ __ _ _ __   ___  _ __  _   _ ", "#4ade80"},
		{"  / __/ _` | '_ \\ / _ \\| '_ \\| | | |", "#34d399"},
		{" | (_| (_| | | | | (_) | |_) | |_| |", "#2dd4bf"},
		{"  \\___\\__,_|_| |_|\\___/| .__/ \\__, |", "#22d3ee"},
		{"                       |_|    |___/ ", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintf(w, "  %s\n\n", out.String("v"+strings.TrimSpace(version)).Faint())
}
