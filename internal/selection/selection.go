// Package selection decides which build and runtime images a generated
// Dockerfile uses, given the platforms a source tree is compatible with.
package selection

import (
	"fmt"
	"strings"
)

// Build image tags.
const (
	// TagSlim is the smaller build image carrying only the most common
	// platform versions.
	TagSlim = "slim"
	// TagLatest is the full build image.
	TagLatest = "latest"
)

// ImageSelection is the result of a decision. It is a value type; copies are
// independent.
type ImageSelection struct {
	// BuildImageTag is TagSlim or TagLatest.
	BuildImageTag string `json:"buildImageTag"`

	// RuntimeImageName is the runtime image repository name (e.g. "dotnetcore").
	RuntimeImageName string `json:"runtimeImageName"`

	// RuntimeImageTag is the normalized runtime version (e.g. "3.8").
	RuntimeImageTag string `json:"runtimeImageTag"`
}

func (s ImageSelection) String() string {
	return fmt.Sprintf("build:%s runtime:%s:%s", s.BuildImageTag, s.RuntimeImageName, s.RuntimeImageTag)
}

// PrimaryRule names how the runtime image pair is chosen from the
// compatible set.
type PrimaryRule string

const (
	// RuleLast picks the last pair in detection order. It is the default.
	RuleLast PrimaryRule = "last"
	// RulePrimary picks the first pair in detection order, the primary platform.
	RulePrimary PrimaryRule = "primary"
)

// PrimaryRules lists the accepted rule names.
func PrimaryRules() []string {
	return []string{string(RuleLast), string(RulePrimary)}
}

// ParsePrimaryRule parses a rule name. The empty string means RuleLast.
func ParsePrimaryRule(s string) (PrimaryRule, error) {
	switch PrimaryRule(strings.ToLower(strings.TrimSpace(s))) {
	case "", RuleLast:
		return RuleLast, nil
	case RulePrimary:
		return RulePrimary, nil
	default:
		return "", fmt.Errorf("unknown primary rule %q (valid: %s)", s, strings.Join(PrimaryRules(), ", "))
	}
}

// DefaultAliases maps platform names to runtime image names where they differ.
func DefaultAliases() map[string]string {
	return map[string]string{"dotnet": "dotnetcore"}
}

// UnsupportedPlatformError is returned when no supported platform is
// detected in the source.
type UnsupportedPlatformError struct {
	SourceDir string
}

func (e *UnsupportedPlatformError) Error() string {
	if e.SourceDir == "" {
		return "could not detect any supported language or platform"
	}
	return "could not detect any supported language or platform in " + e.SourceDir
}
