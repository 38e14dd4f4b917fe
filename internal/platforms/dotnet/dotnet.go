// Package dotnet detects .NET (Core) applications.
package dotnet

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/wharflab/keelson/internal/platform"
)

// Name is the platform name.
const Name = "dotnet"

const globalJSON = "global.json"

// projectPatterns find project files at the root or up to two levels deep.
var projectPatterns = []string{"*.csproj", "*/*.csproj", "*/*/*.csproj"}

// Platform implements platform.Platform for .NET.
type Platform struct{}

// New creates the dotnet platform.
func New() *Platform { return &Platform{} }

func (*Platform) Name() string  { return Name }
func (*Platform) Priority() int { return 10 }

func (*Platform) DefaultVersions() platform.Versions {
	return platform.Versions{
		Supported: []string{"2.1.23", "3.1.10", "5.0.0"},
		Default:   "3.1.10",
	}
}

// Detect matches on project files. The version comes from the global.json
// SDK pin, else the projects' target framework; projects that disagree are
// an error.
func (*Platform) Detect(_ context.Context, src *platform.Source) (*platform.Detection, error) {
	projects, err := src.Glob(projectPatterns...)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}

	if src.Exists(globalJSON) {
		spec, err := readGlobalJSON(src)
		if err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: globalJSON, Err: err}
		}
		if spec != "" {
			return &platform.Detection{VersionSpec: spec, Origin: globalJSON + " sdk.version"}, nil
		}
	}

	specs := make(map[string]string)
	var first string
	for _, proj := range projects {
		data, err := src.Read(proj)
		if err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: proj, Err: err}
		}
		version, err := targetFrameworkVersion(data)
		if err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: proj, Err: err}
		}
		if version == "" {
			continue
		}
		if first == "" {
			first = proj
		}
		specs[proj] = version
	}

	if len(specs) == 0 {
		return &platform.Detection{}, nil
	}
	distinct := make(map[string]bool)
	for _, v := range specs {
		distinct[v] = true
	}
	if len(distinct) > 1 {
		return nil, &platform.AmbiguousVersionError{Platform: Name, Specs: specs}
	}
	return &platform.Detection{VersionSpec: specs[first], Origin: first + " TargetFramework"}, nil
}

// readGlobalJSON returns the major.minor of the pinned SDK. SDK feature
// bands (3.1.404) do not correspond to runtime patch versions.
func readGlobalJSON(src *platform.Source) (string, error) {
	data, err := src.Read(globalJSON)
	if err != nil {
		return "", err
	}
	var doc struct {
		SDK struct {
			Version string `json:"version"`
		} `json:"sdk"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	if doc.SDK.Version == "" {
		return "", nil
	}
	v, err := semver.NewVersion(doc.SDK.Version)
	if err != nil {
		return "", err
	}
	return formatMajorMinor(v), nil
}

type project struct {
	PropertyGroups []struct {
		TargetFramework  string `xml:"TargetFramework"`
		TargetFrameworks string `xml:"TargetFrameworks"`
	} `xml:"PropertyGroup"`
}

// runtimeTFM matches the target framework monikers of runnable apps:
// netcoreapp2.1, netcoreapp3.1, net5.0, net6.0-windows.
var runtimeTFM = regexp.MustCompile(`^net(?:coreapp)?(\d+\.\d+)(?:-[\w.]+)?$`)

// targetFrameworkVersion returns the highest runtime version targeted by a
// project file, or "" for libraries (netstandard) and classic .NET Framework.
func targetFrameworkVersion(data []byte) (string, error) {
	var proj project
	if err := xml.Unmarshal(data, &proj); err != nil {
		return "", err
	}

	var best *semver.Version
	for _, pg := range proj.PropertyGroups {
		monikers := strings.Split(pg.TargetFrameworks, ";")
		monikers = append(monikers, pg.TargetFramework)
		for _, tfm := range monikers {
			m := runtimeTFM.FindStringSubmatch(strings.TrimSpace(tfm))
			if m == nil {
				continue
			}
			v, err := semver.NewVersion(m[1])
			if err != nil {
				continue
			}
			if best == nil || v.GreaterThan(best) {
				best = v
			}
		}
	}
	if best == nil {
		return "", nil
	}
	return formatMajorMinor(best), nil
}

func formatMajorMinor(v *semver.Version) string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

func init() {
	platform.Register(New())
}
