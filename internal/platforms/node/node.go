// Package node detects Node.js applications.
package node

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/wharflab/keelson/internal/platform"
)

// Name is the platform name.
const Name = "node"

const (
	packageJSON = "package.json"
	nvmrc       = ".nvmrc"
)

// markers are root files that identify a Node.js application.
var markers = []string{packageJSON, "package-lock.json", "yarn.lock", "server.js", "app.js"}

// Platform implements platform.Platform for Node.js.
type Platform struct{}

// New creates the node platform.
func New() *Platform { return &Platform{} }

func (*Platform) Name() string  { return Name }
func (*Platform) Priority() int { return 40 }

func (*Platform) DefaultVersions() platform.Versions {
	return platform.Versions{
		Supported: []string{"8.17.0", "10.23.0", "12.20.0", "13.14.0", "14.15.1"},
		Default:   "12.20.0",
	}
}

type packageManifest struct {
	Engines struct {
		Node string `json:"node"`
	} `json:"engines"`
}

// Detect matches on any marker file. The version comes from package.json
// engines.node, then .nvmrc.
func (*Platform) Detect(_ context.Context, src *platform.Source) (*platform.Detection, error) {
	if !src.Any(markers...) {
		return nil, nil
	}
	det := &platform.Detection{}

	if src.Exists(packageJSON) {
		data, err := src.Read(packageJSON)
		if err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: packageJSON, Err: err}
		}
		var pkg packageManifest
		if err := json.Unmarshal(data, &pkg); err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: packageJSON, Err: err}
		}
		if spec := strings.TrimSpace(pkg.Engines.Node); spec != "" {
			det.VersionSpec = spec
			det.Origin = packageJSON + " engines.node"
			return det, nil
		}
	}

	if src.Exists(nvmrc) {
		data, err := src.Read(nvmrc)
		if err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: nvmrc, Err: err}
		}
		spec := strings.TrimSpace(firstLine(string(data)))
		switch {
		case spec == "", spec == "node", spec == "stable", strings.HasPrefix(spec, "lts"):
			// aliases resolved by nvm at install time; use the default
			src.Log().WithField("platform", Name).Debugf("ignoring nvm alias %q in %s", spec, nvmrc)
		default:
			det.VersionSpec = spec
			det.Origin = nvmrc
		}
	}
	return det, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func init() {
	platform.Register(New())
}
