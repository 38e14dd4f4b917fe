// Package discovery finds project manifests inside a source tree with
// doublestar glob patterns, honoring exclude patterns.
package discovery

import (
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Options configures manifest discovery.
type Options struct {
	// Patterns are slash-separated glob patterns relative to the root,
	// e.g. "package.json" or "*/*.csproj". Doublestar "**" is supported.
	Patterns []string

	// ExcludePatterns drop matching paths from the results.
	ExcludePatterns []string
}

// DefaultExcludePatterns returns the directories never searched for manifests.
func DefaultExcludePatterns() []string {
	return []string{
		"**/node_modules/**",
		"**/.git/**",
		"**/bin/**",
		"**/obj/**",
		"**/.venv/**",
		"**/vendor/**",
	}
}

// Find returns the files under root matching any pattern, as sorted,
// deduplicated, slash-separated paths relative to root.
func Find(root string, opts Options) ([]string, error) {
	return FindFS(os.DirFS(root), opts)
}

// FindFS is Find over an fs.FS.
func FindFS(fsys fs.FS, opts Options) ([]string, error) {
	seen := make(map[string]bool)
	var results []string

	for _, pattern := range opts.Patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if seen[match] || IsExcluded(match, opts.ExcludePatterns) {
				continue
			}
			seen[match] = true
			results = append(results, match)
		}
	}

	slices.Sort(results)
	return results, nil
}

// IsExcluded checks a slash-separated relative path against exclusion patterns:
//
//  1. the full relative path ("src/vendor/x.csproj")
//  2. the base name (for simple patterns like "*.bak")
//  3. every suffix subpath, so "vendor/*" excludes a vendor directory at any depth
func IsExcluded(rel string, excludePatterns []string) bool {
	parts := strings.Split(rel, "/")
	base := path.Base(rel)

	for _, pattern := range excludePatterns {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, base); err == nil && matched {
			return true
		}
		for i := 1; i < len(parts); i++ {
			subpath := strings.Join(parts[i:], "/")
			if matched, err := doublestar.Match(pattern, subpath); err == nil && matched {
				return true
			}
		}
	}
	return false
}
