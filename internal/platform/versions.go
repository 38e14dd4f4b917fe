package platform

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrNoMatchingVersion is returned by Versions.Resolve when no supported
// version satisfies the spec.
var ErrNoMatchingVersion = errors.New("no matching version")

// partialVersion matches plain dotted versions ("12", "3.7", "3.7.9").
var partialVersion = regexp.MustCompile(`^v?\d+(\.\d+)*$`)

// Versions is the set of versions a platform can build and run.
type Versions struct {
	// Supported lists every version with a published image, dotted numeric.
	Supported []string `json:"versions"`

	// Default is used when the project declares no version.
	Default string `json:"default-version"`
}

// Validate checks that every supported version parses and that the default
// is one of them.
func (v Versions) Validate() error {
	if len(v.Supported) == 0 {
		return errors.New("no supported versions")
	}
	for _, s := range v.Supported {
		if !partialVersion.MatchString(s) {
			return fmt.Errorf("supported version %q is not a dotted numeric version", s)
		}
	}
	if v.Default != "" && !slices.Contains(v.Supported, v.Default) {
		return fmt.Errorf("default version %q is not in the supported list", v.Default)
	}
	return nil
}

// Resolve maps a declared version spec onto a supported version.
//
// An empty spec yields the default (or the highest supported version when
// no default is set). A plain dotted version matches supported versions by
// dotted-component prefix; anything else is parsed as a semver constraint.
// Either way the highest matching supported version wins.
func (v Versions) Resolve(spec string) (string, error) {
	spec = NormalizeSpec(spec)
	if spec == "" {
		if v.Default != "" {
			return v.Default, nil
		}
		if sorted := v.sortedDesc(); len(sorted) > 0 {
			return sorted[0].Original(), nil
		}
		return "", ErrNoMatchingVersion
	}

	if partialVersion.MatchString(spec) {
		want := strings.Split(strings.TrimPrefix(spec, "v"), ".")
		for _, sv := range v.sortedDesc() {
			have := strings.Split(sv.Original(), ".")
			if len(have) >= len(want) && slices.Equal(have[:len(want)], want) {
				return sv.Original(), nil
			}
		}
		return "", ErrNoMatchingVersion
	}

	constraint, err := semver.NewConstraint(spec)
	if err != nil {
		return "", fmt.Errorf("invalid version constraint: %w", err)
	}
	for _, sv := range v.sortedDesc() {
		if constraint.Check(sv) {
			return sv.Original(), nil
		}
	}
	return "", ErrNoMatchingVersion
}

// sortedDesc returns the parseable supported versions, highest first.
func (v Versions) sortedDesc() []*semver.Version {
	out := make([]*semver.Version, 0, len(v.Supported))
	for _, s := range v.Supported {
		sv, err := semver.NewVersion(s)
		if err != nil {
			continue
		}
		out = append(out, sv)
	}
	slices.SortFunc(out, func(a, b *semver.Version) int {
		return b.Compare(a)
	})
	return out
}

var (
	// composer allows a single "|" between alternatives
	singlePipe = regexp.MustCompile(`\s*\|{1,2}\s*`)
	// PEP 440 compatible release: ~=3.7 means >=3.7,<4
	compatibleRelease = regexp.MustCompile(`~=\s*(\d+(?:\.\d+)*)`)
	// PEP 440 / composer exact match
	doubleEquals = regexp.MustCompile(`===?\s*`)
)

// NormalizeSpec rewrites the constraint dialects found in project manifests
// (npm, composer, PEP 440) into the syntax understood by semver.NewConstraint.
func NormalizeSpec(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return spec
	}
	spec = singlePipe.ReplaceAllString(spec, " || ")
	spec = compatibleRelease.ReplaceAllStringFunc(spec, func(m string) string {
		ver := compatibleRelease.FindStringSubmatch(m)[1]
		if strings.Count(ver, ".") >= 2 {
			return "~" + ver
		}
		return "^" + ver
	})
	spec = doubleEquals.ReplaceAllString(spec, "=")
	// ".*" wildcards (PEP 440 "==3.7.*") become semver "x" ranges
	spec = strings.ReplaceAll(spec, ".*", ".x")
	// "=3.7" is an exact partial version, resolved by prefix
	if rest, ok := strings.CutPrefix(spec, "="); ok && partialVersion.MatchString(rest) {
		return rest
	}
	return spec
}
