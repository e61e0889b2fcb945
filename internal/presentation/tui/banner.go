package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the autonoma banner with the version underneath.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"   __ _ _   _| |_ ___  _ __   ___  _ __ ___   __ _", "#34d399"},
		{"  / _` | | | | __/ _ \\| '_ \\ / _ \\| '_ ` _ \\ / _` |", "#2dd4bf"},
		{" | (_| | |_| | || (_) | | | | (_) | | | | | | (_| |", "#22d3ee"},
		{"  \\__,_|\\__,_|\\__\\___/|_| |_|\\___/|_| |_| |_|\\__,_|", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  fleet diagnostics "+version).Faint())
	fmt.Fprintln(w)
}
