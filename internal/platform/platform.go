// Package platform defines the contract between the Dockerfile decision
// engine and the per-platform detectors: what a platform is, what a detection
// yields, and how detections become an ordered set of compatible
// (platform, version) pairs.
package platform

import (
	stdcontext "context"
	"fmt"
	"sort"
	"strings"
)

// Platform is a supported application runtime (node, python, dotnet, php).
type Platform interface {
	// Name is the platform identifier used in flags, config and slim policy.
	Name() string

	// Priority orders platforms in a polyglot source tree. Lower values are
	// more likely to be the primary platform of the application.
	Priority() int

	// DefaultVersions returns the built-in supported and default versions.
	DefaultVersions() Versions

	// Detect inspects the source. It returns nil when the source does not
	// look like an application of this platform.
	Detect(ctx stdcontext.Context, src *Source) (*Detection, error)
}

// Detection is the result of a positive platform match.
type Detection struct {
	// VersionSpec is the version or constraint the project declares
	// ("3.7", ">=10 <13", "^7.2"). Empty when the project declares none.
	VersionSpec string

	// Origin says where VersionSpec came from (e.g. "package.json engines.node").
	Origin string
}

// PlatformVersion is one compatible (platform, resolved version) pair.
type PlatformVersion struct {
	// Name is the platform name.
	Name string `json:"platform"`

	// Version is the resolved, dotted numeric version (e.g. "3.7.9").
	Version string `json:"version"`

	// Spec is the declared version constraint that was resolved, if any.
	Spec string `json:"spec,omitempty"`

	// Origin describes where the version came from.
	Origin string `json:"origin"`
}

func (p PlatformVersion) String() string {
	return p.Name + "@" + p.Version
}

// CompatibleSet is the ordered result of detection. Order is priority order:
// the primary platform comes first.
type CompatibleSet []PlatformVersion

// Names returns the platform names in order.
func (s CompatibleSet) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

func (s CompatibleSet) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Origin values for versions that did not come from a project file.
const (
	OriginExplicit = "explicit --platform-version"
	OriginDefault  = "platform default"
)

// UnknownPlatformError is returned when an explicit platform is not registered.
type UnknownPlatformError struct {
	Name  string
	Known []string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform %q (supported: %s)", e.Name, strings.Join(e.Known, ", "))
}

// UnsupportedVersionError is returned when no supported version satisfies
// the declared or explicit version spec.
type UnsupportedVersionError struct {
	Platform  string
	Spec      string
	Origin    string
	Supported []string
	Err       error
}

func (e *UnsupportedVersionError) Error() string {
	msg := fmt.Sprintf("platform %s: no supported version satisfies %q", e.Platform, e.Spec)
	if e.Origin != "" {
		msg += " (from " + e.Origin + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + "; supported versions: " + strings.Join(e.Supported, ", ")
}

func (e *UnsupportedVersionError) Unwrap() error { return e.Err }

// AmbiguousVersionError is returned when several project files of one
// platform declare conflicting versions.
type AmbiguousVersionError struct {
	Platform string
	// Specs maps a source-relative file to the version it declares.
	Specs map[string]string
}

func (e *AmbiguousVersionError) Error() string {
	files := make([]string, 0, len(e.Specs))
	for file, spec := range e.Specs {
		files = append(files, file+"="+spec)
	}
	sort.Strings(files)
	return fmt.Sprintf("platform %s: conflicting versions declared (%s); pass --platform-version to choose one",
		e.Platform, strings.Join(files, ", "))
}

// ManifestError wraps a failure to read or parse a project manifest.
type ManifestError struct {
	Platform string
	File     string
	Err      error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("platform %s: %s: %v", e.Platform, e.File, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }
