package reporter

import (
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/wharflab/keelson/internal/selection"
)

// JSONReporter formats a report as JSON output.
type JSONReporter struct {
	writer io.Writer
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

// Report implements Reporter.
func (r *JSONReporter) Report(rep Report) error {
	// Normalize paths to forward slashes for cross-platform consistency
	rep.SourceDir = filepath.ToSlash(rep.SourceDir)
	// Always emit an array so consumers need not special-case null
	if rep.Candidates == nil {
		rep.Candidates = []selection.Candidate{}
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
