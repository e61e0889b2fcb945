package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer that detects light/dark backgrounds.
func NewRenderer() Renderer {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return Plain
	}
	return r.Render
}

// Plain returns the markdown unchanged.
func Plain(markdown string) (string, error) { return markdown, nil }

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ForFile picks glamour for terminals and plain text for pipes and files.
func ForFile(f *os.File) Renderer {
	if IsTerminal(f) {
		return NewRenderer()
	}
	return Plain
}

// Report formats a vehicle record as markdown: the diagnosis summary, the
// visited path and the transcript.
func Report(s *domain.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", s.VehicleID)

	if s.AnomalyDetected {
		fmt.Fprintf(&sb, "- **Anomaly:** %s\n", s.AnomalyReason)
	} else {
		sb.WriteString("- **Anomaly:** none\n")
	}
	fmt.Fprintf(&sb, "- **Severity:** %s\n", s.Severity)
	if s.Diagnosis != "" {
		fmt.Fprintf(&sb, "- **Diagnosis:** %s\n", s.Diagnosis)
	}
	if s.RUL != nil {
		fmt.Fprintf(&sb, "- **RUL:** %g%%\n", *s.RUL)
	}
	if s.BookingID != "" {
		fmt.Fprintf(&sb, "- **Booking:** `%s`\n", s.BookingID)
	}
	if s.Error != "" {
		fmt.Fprintf(&sb, "- **Error:** %s\n", s.Error)
	}

	if len(s.Path) > 0 {
		names := make([]string, len(s.Path))
		for i, n := range s.Path {
			names[i] = "`" + string(n) + "`"
		}
		fmt.Fprintf(&sb, "\n**Path:** %s\n", strings.Join(names, " → "))
	}

	if len(s.Messages) > 0 {
		sb.WriteString("\n## Transcript\n\n")
		for _, m := range s.Messages {
			fmt.Fprintf(&sb, "> **%s:** %s\n>\n", m.Sender, m.Content)
		}
	}
	return sb.String()
}
