package reporter

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MarkdownReporter formats a report as concise markdown tables.
type MarkdownReporter struct {
	writer io.Writer
}

// NewMarkdownReporter creates a new Markdown reporter.
func NewMarkdownReporter(w io.Writer) *MarkdownReporter {
	return &MarkdownReporter{writer: w}
}

// Report implements Reporter.
func (r *MarkdownReporter) Report(rep Report) error {
	var b strings.Builder
	dir := filepath.ToSlash(rep.SourceDir)

	if !rep.Detected() {
		fmt.Fprintf(&b, "**No supported platform detected** in `%s`\n", dir)
		_, err := io.WriteString(r.writer, b.String())
		return err
	}

	fmt.Fprintf(&b, "**%d %s** detected in `%s`",
		len(rep.Candidates), pluralize(len(rep.Candidates), "platform", "platforms"), dir)
	if rep.IgnoreFile != "" {
		fmt.Fprintf(&b, " (honoring `%s`)", rep.IgnoreFile)
	}
	b.WriteString("\n\n")
	b.WriteString("| # | Platform | Version | Source | Slim |\n")
	b.WriteString("|---|----------|---------|--------|------|\n")
	for i, c := range rep.Candidates {
		source := c.Origin
		if c.Spec != "" {
			source += " `" + c.Spec + "`"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Version, escapeMarkdown(source), yesNo(c.SlimEligible))
	}

	if rep.Runtime != nil {
		fmt.Fprintf(&b, "\nRuntime platform: **%s** (rule `%s`)\n", rep.Runtime.String(), rep.Rule)
	}
	if rep.BuildImage != "" || rep.RuntimeImage != "" {
		b.WriteString("\n| Image | Reference |\n")
		b.WriteString("|-------|-----------|\n")
		fmt.Fprintf(&b, "| build | `%s` |\n", rep.BuildImage)
		fmt.Fprintf(&b, "| runtime | `%s` |\n", rep.RuntimeImage)
	}

	if len(rep.Verification) > 0 {
		b.WriteString("\n| Verified | Reference | Result |\n")
		b.WriteString("|----------|-----------|--------|\n")
		for _, v := range rep.Verification {
			result := v.Digest
			if !v.OK() {
				result = escapeMarkdown(v.Error)
			}
			fmt.Fprintf(&b, "| %s | `%s` | %s |\n", verifiedEmoji(v.OK()), v.Ref, result)
		}
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func verifiedEmoji(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// escapeMarkdown escapes special markdown characters in table cells.
func escapeMarkdown(s string) string {
	// Escape pipe characters which break table formatting
	s = strings.ReplaceAll(s, "|", "\\|")
	// Replace newlines with spaces
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

// pluralize returns singular or plural form based on count.
func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
