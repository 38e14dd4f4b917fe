package platform

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/sirupsen/logrus"

	"github.com/wharflab/keelson/internal/context"
	"github.com/wharflab/keelson/internal/discovery"
	"github.com/wharflab/keelson/internal/fileval"
)

// Source is the filtered view of a source tree handed to detectors.
// Paths are slash-separated and relative to the source directory.
// Files ignored by .dockerignore or matched by an exclude pattern do not exist.
type Source struct {
	bctx    *context.BuildContext
	exclude []string
	log     logrus.FieldLogger
}

// NewSource creates a Source over bctx.
func NewSource(bctx *context.BuildContext, exclude []string, log logrus.FieldLogger) *Source {
	if log == nil {
		log = discardLogger()
	}
	return &Source{bctx: bctx, exclude: exclude, log: log}
}

// Dir returns the absolute source directory.
func (s *Source) Dir() string { return s.bctx.SourceDir }

// Log returns the logger detectors should use.
func (s *Source) Log() logrus.FieldLogger { return s.log }

// Exists reports whether rel is a visible regular file.
func (s *Source) Exists(rel string) bool {
	if discovery.IsExcluded(rel, s.exclude) {
		return false
	}
	return s.bctx.FileExists(rel)
}

// Read returns the content of a visible manifest, validated by fileval.
// Invisible files report fs.ErrNotExist.
func (s *Source) Read(rel string) ([]byte, error) {
	if !s.Exists(rel) {
		return nil, &fs.PathError{Op: "read", Path: rel, Err: fs.ErrNotExist}
	}
	return fileval.ReadManifest(s.bctx.Path(rel), s.bctx.MaxManifestSize)
}

// Glob returns the visible files matching any of the patterns, sorted.
func (s *Source) Glob(patterns ...string) ([]string, error) {
	matches, err := discovery.Find(s.bctx.SourceDir, discovery.Options{
		Patterns:        patterns,
		ExcludePatterns: s.exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("glob %v: %w", patterns, err)
	}

	visible := matches[:0]
	for _, m := range matches {
		ignored, err := s.bctx.IsIgnored(m)
		if err != nil {
			return nil, err
		}
		if !ignored {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// Any reports whether any of the named files is visible.
func (s *Source) Any(names ...string) bool {
	for _, name := range names {
		if s.Exists(name) {
			return true
		}
	}
	return false
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
