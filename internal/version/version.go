// Package version reports the keelson build and the versions of the
// libraries that shape its output.
package version

import (
	"runtime"
	"runtime/debug"
	"slices"
)

// set with -ldflags "-X github.com/wharflab/keelson/internal/version.version=..."
var version = "dev"

// Version returns the current version string with BuildKit suffix.
// BuildKit's parser validates every generated Dockerfile, so its version
// is part of what a build produces.
func Version() string {
	if bk := BuildKitVersion(); bk != "" {
		return version + " (buildkit " + bk + ")"
	}
	return version
}

// RawVersion returns the semantic version string without any suffix.
func RawVersion() string {
	return version
}

// UserAgent is sent to container registries during image verification.
func UserAgent() string {
	return "keelson/" + version
}

// BuildKitVersion returns the linked BuildKit version from build info.
func BuildKitVersion() string {
	return readBuildInfo().buildkit
}

// GoVersion returns the Go toolchain version used for the build.
func GoVersion() string {
	return runtime.Version()
}

type buildInfo struct {
	buildkit string
	commit   string
	modified bool
}

// readBuildInfo extracts the BuildKit dependency version and the VCS state.
func readBuildInfo() buildInfo {
	var bi buildInfo
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if idx := slices.IndexFunc(info.Deps, func(dep *debug.Module) bool {
		return dep.Path == "github.com/moby/buildkit"
	}); idx >= 0 {
		bi.buildkit = info.Deps[idx].Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			bi.commit = s.Value
			if len(bi.commit) > 12 {
				bi.commit = bi.commit[:12]
			}
		case "vcs.modified":
			bi.modified = s.Value == "true"
		}
	}
	return bi
}

// Info holds structured version information for machine-readable output.
type Info struct {
	Version         string   `json:"version"`
	BuildkitVersion string   `json:"buildkitVersion,omitempty"`
	Platform        Platform `json:"platform"`
	GoVersion       string   `json:"goVersion"`
	GitCommit       string   `json:"gitCommit,omitempty"`
	Dirty           bool     `json:"dirty,omitempty"`
}

// Platform describes the OS and architecture.
type Platform struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// GetInfo returns structured version information.
func GetInfo() Info {
	bi := readBuildInfo()
	return Info{
		Version:         RawVersion(),
		BuildkitVersion: bi.buildkit,
		Platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		GoVersion: GoVersion(),
		GitCommit: bi.commit,
		Dirty:     bi.modified,
	}
}
