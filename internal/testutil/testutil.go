// Package testutil provides test helpers for keelson packages.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree creates a temporary source tree from a map of slash-separated
// relative paths to file contents and returns its root.
func WriteTree(tb testing.TB, files map[string]string) string {
	tb.Helper()

	dir := tb.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			tb.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil { //nolint:gosec // test-only fixture
			tb.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}
