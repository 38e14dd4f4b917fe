package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Styles for different parts of the output
var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")) // Light gray

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Gray

	platformStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Blue

	originStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray

	imageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")) // White

	slimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("35")) // Green

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("35")) // Green

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // Red

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")) // Orange/Yellow
)

// TextReporter formats a report as styled text.
type TextReporter struct {
	writer io.Writer
	color  bool
}

// NewTextReporter creates a text reporter. A nil color auto-detects from the
// environment and whether w is a terminal.
func NewTextReporter(w io.Writer, color *bool) *TextReporter {
	enabled := colorEnabled(w)
	if color != nil {
		enabled = *color
	}
	return &TextReporter{writer: w, color: enabled}
}

// colorEnabled respects NO_COLOR and CLICOLOR_FORCE via termenv and only
// colors terminals.
func colorEnabled(w io.Writer) bool {
	if termenv.EnvColorProfile() == termenv.Ascii {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *TextReporter) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

// Report implements Reporter.
func (r *TextReporter) Report(rep Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", r.style(labelStyle, "Source:"), rep.SourceDir)
	if rep.IgnoreFile != "" {
		fmt.Fprintf(&b, "%s %s\n", r.style(labelStyle, "Ignoring paths from:"), rep.IgnoreFile)
	}

	if !rep.Detected() {
		fmt.Fprintf(&b, "\n%s\n", r.style(warningStyle, "No supported platform detected"))
		_, err := io.WriteString(r.writer, b.String())
		return err
	}

	fmt.Fprintf(&b, "\n%s\n", r.style(headingStyle, "Detected platforms"))
	for i, c := range rep.Candidates {
		line := fmt.Sprintf("  %d. %s %s",
			i+1, r.style(platformStyle, c.Name), c.Version)
		origin := c.Origin
		if c.Spec != "" && c.Origin != "" {
			origin = fmt.Sprintf("%s %q", c.Origin, c.Spec)
		}
		if origin != "" {
			line += " " + r.style(originStyle, "("+origin+")")
		}
		if c.SlimEligible {
			line += " " + r.style(slimStyle, "[slim]")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if rep.Runtime != nil {
		fmt.Fprintf(&b, "%s %s %s\n",
			r.style(labelStyle, "Runtime platform:"),
			r.style(platformStyle, rep.Runtime.String()),
			r.style(originStyle, "(rule: "+string(rep.Rule)+")"))
	}
	if rep.BuildImage != "" {
		fmt.Fprintf(&b, "%s   %s\n", r.style(labelStyle, "Build image:"), r.style(imageStyle, rep.BuildImage))
	}
	if rep.RuntimeImage != "" {
		fmt.Fprintf(&b, "%s %s\n", r.style(labelStyle, "Runtime image:"), r.style(imageStyle, rep.RuntimeImage))
	}

	if len(rep.Verification) > 0 {
		fmt.Fprintf(&b, "\n%s\n", r.style(headingStyle, "Image verification"))
		for _, v := range rep.Verification {
			if v.OK() {
				fmt.Fprintf(&b, "  %s %s %s\n", r.style(okStyle, "ok  "), v.Ref, r.style(originStyle, v.Digest))
			} else {
				fmt.Fprintf(&b, "  %s %s: %s\n", r.style(failStyle, "FAIL"), v.Ref, v.Error)
			}
		}
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}
