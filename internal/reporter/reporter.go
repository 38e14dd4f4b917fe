// Package reporter formats the outcome of platform detection and image
// selection.
//
// The package supports multiple output formats:
//   - text: Human-readable terminal output with colors
//   - json: Machine-readable JSON output
//   - markdown: Concise markdown tables for pull requests and AI agents
package reporter

import (
	"fmt"
	"io"
	"os"

	"github.com/wharflab/keelson/internal/dockerfile"
	"github.com/wharflab/keelson/internal/registry"
	"github.com/wharflab/keelson/internal/selection"
)

// Report is everything known about one detection run.
type Report struct {
	// SourceDir is the directory that was scanned.
	SourceDir string `json:"sourceDir"`

	// IgnoreFile is the ignore file that hid paths from detection, if any.
	IgnoreFile string `json:"ignoreFile,omitempty"`

	// Candidates are the compatible pairs in detection order.
	Candidates []selection.Candidate `json:"candidates"`

	// Rule is the primary rule that chose the runtime pair.
	Rule selection.PrimaryRule `json:"primaryRule,omitempty"`

	// Runtime is the pair the runtime image is built for.
	Runtime *selection.Candidate `json:"runtimePlatform,omitempty"`

	// Selection is the chosen tag triple.
	Selection *selection.ImageSelection `json:"selection,omitempty"`

	// BuildImage and RuntimeImage are the full image references.
	BuildImage   string `json:"buildImage,omitempty"`
	RuntimeImage string `json:"runtimeImage,omitempty"`

	// Verification holds registry checks, when they ran.
	Verification []Verification `json:"verification,omitempty"`
}

// Verification is the registry check of one image reference.
type Verification struct {
	Ref      string `json:"ref"`
	Digest   string `json:"digest,omitempty"`
	Platform string `json:"platform,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OK reports whether the image was found.
func (v Verification) OK() bool { return v.Error == "" }

// NewReport builds a Report from an engine decision and the repositories the
// images are pulled from. A nil decision yields a report with no candidates.
func NewReport(sourceDir string, d *selection.Decision, props dockerfile.Properties) Report {
	r := Report{SourceDir: sourceDir}
	if d == nil {
		return r
	}
	r.Candidates = d.Candidates
	r.Rule = d.Rule
	winner := d.Winner
	r.Runtime = &winner
	sel := d.Selection
	r.Selection = &sel

	props.ImageSelection = sel
	r.BuildImage = props.BuildImage()
	r.RuntimeImage = props.RuntimeImage()
	return r
}

// AddVerification records registry results on the report.
func (r *Report) AddVerification(results []registry.Result) {
	for _, res := range results {
		v := Verification{
			Ref:      res.Ref,
			Digest:   res.Info.Digest.String(),
			Platform: res.Info.Platform,
		}
		if res.Err != nil {
			v.Digest = ""
			v.Error = res.Err.Error()
		}
		r.Verification = append(r.Verification, v)
	}
}

// Detected reports whether any platform was detected.
func (r Report) Detected() bool { return len(r.Candidates) > 0 }

// Reporter writes a Report.
type Reporter interface {
	Report(r Report) error
}

// Format represents an output format type.
type Format string

const (
	// FormatText is human-readable terminal output.
	FormatText Format = "text"
	// FormatJSON is machine-readable JSON output.
	FormatJSON Format = "json"
	// FormatMarkdown is concise markdown tables.
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted format names.
func Formats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatMarkdown)}
}

// ParseFormat parses a format string into a Format type.
// Returns an error if the format is unknown.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format: %q (valid: text, json, markdown)", s)
	}
}

// Options configures reporter creation.
type Options struct {
	// Format specifies the output format.
	Format Format

	// Writer is the output destination.
	Writer io.Writer

	// Color enables/disables colored output (text format only).
	// nil means auto-detect.
	Color *bool
}

// New creates a reporter based on the format specified in options.
func New(opts Options) (Reporter, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	switch opts.Format {
	case FormatText, "":
		return NewTextReporter(opts.Writer, opts.Color), nil
	case FormatJSON:
		return NewJSONReporter(opts.Writer), nil
	case FormatMarkdown:
		return NewMarkdownReporter(opts.Writer), nil
	default:
		return nil, fmt.Errorf("unknown format: %q", opts.Format)
	}
}

// GetWriter returns an io.Writer for the given output path.
// Supports "stdout", "stderr", or file paths.
func GetWriter(path string) (io.Writer, func() error, error) {
	switch path {
	case "stdout", "", "-":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		return f, f.Close, nil
	}
}
