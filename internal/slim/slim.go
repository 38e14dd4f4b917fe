// Package slim holds the policy that decides which platform versions can be
// built on the "slim" build image.
//
// The policy is plain data (platform name → version prefixes) so it can be
// replaced from configuration without touching the decision logic. A Table is
// immutable once constructed and safe for concurrent readers.
package slim

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// SchemaVersion is the version of the built-in table layout.
const SchemaVersion = 1

// Table maps a platform name to the version prefixes eligible for the slim
// build image.
type Table struct {
	version   int
	platforms map[string][]string
}

// Default returns the built-in compatibility table.
func Default() *Table {
	t, err := New(SchemaVersion, map[string][]string{
		"dotnet": {"2.1"}, // keyed by the detector name, not the runtime image name
		"node":   {"8", "10", "12"},
		"python": {"3.7", "3.8"},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// New builds a table from a platform → prefixes mapping.
// The input is copied; later changes to it do not affect the table.
func New(version int, platforms map[string][]string) (*Table, error) {
	t := &Table{
		version:   version,
		platforms: make(map[string][]string, len(platforms)),
	}
	for name, prefixes := range platforms {
		t.platforms[name] = slices.Clone(prefixes)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Version returns the table schema version.
func (t *Table) Version() int { return t.version }

// Platforms returns the registered platform names, sorted.
func (t *Table) Platforms() []string {
	return slices.Sorted(maps.Keys(t.platforms))
}

// Prefixes returns a copy of the prefixes registered for a platform.
func (t *Table) Prefixes(platform string) []string {
	return slices.Clone(t.platforms[platform])
}

// InvalidPrefixError is returned when a table entry cannot be used for matching.
type InvalidPrefixError struct {
	Platform string
	Prefix   string
	Reason   string
}

func (e *InvalidPrefixError) Error() string {
	return fmt.Sprintf("slim table: platform %q: invalid prefix %q: %s", e.Platform, e.Prefix, e.Reason)
}

// Validate checks that every entry has a name and well-formed dotted prefixes.
func (t *Table) Validate() error {
	if t.version < 1 {
		return fmt.Errorf("slim table: unsupported version %d", t.version)
	}
	for name, prefixes := range t.platforms {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("slim table: empty platform name")
		}
		for _, p := range prefixes {
			if p == "" {
				return &InvalidPrefixError{Platform: name, Prefix: p, Reason: "empty"}
			}
			if slices.Contains(strings.Split(p, "."), "") {
				return &InvalidPrefixError{Platform: name, Prefix: p, Reason: "empty version component"}
			}
		}
	}
	return nil
}

// IsSlimEligible reports whether version of platform can use the slim build image.
//
// Prefixes match by dotted component, not by substring: "3.7.4" matches "3.7",
// but "3.70" does not. Platforms without an entry are never eligible.
func (t *Table) IsSlimEligible(platform, version string) bool {
	prefixes, ok := t.platforms[platform]
	if !ok {
		return false
	}
	parts := strings.Split(version, ".")
	for _, p := range prefixes {
		if hasComponentPrefix(parts, strings.Split(p, ".")) {
			return true
		}
	}
	return false
}

func hasComponentPrefix(version, prefix []string) bool {
	if len(prefix) > len(version) {
		return false
	}
	return slices.Equal(version[:len(prefix)], prefix)
}
