// Package php detects PHP applications.
package php

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/wharflab/keelson/internal/platform"
)

// Name is the platform name.
const Name = "php"

const composerJSON = "composer.json"

// Platform implements platform.Platform for PHP.
type Platform struct{}

// New creates the php platform.
func New() *Platform { return &Platform{} }

func (*Platform) Name() string  { return Name }
func (*Platform) Priority() int { return 20 }

func (*Platform) DefaultVersions() platform.Versions {
	return platform.Versions{
		Supported: []string{"5.6.40", "7.2.34", "7.3.25", "7.4.13"},
		Default:   "7.3.25",
	}
}

// Detect matches on composer.json or index.php at the root. The version
// comes from the composer require.php constraint.
func (*Platform) Detect(_ context.Context, src *platform.Source) (*platform.Detection, error) {
	if !src.Any(composerJSON, "index.php") {
		return nil, nil
	}
	if !src.Exists(composerJSON) {
		return &platform.Detection{}, nil
	}

	data, err := src.Read(composerJSON)
	if err != nil {
		return nil, &platform.ManifestError{Platform: Name, File: composerJSON, Err: err}
	}
	var composer struct {
		Require map[string]string `json:"require"`
	}
	if err := json.Unmarshal(data, &composer); err != nil {
		return nil, &platform.ManifestError{Platform: Name, File: composerJSON, Err: err}
	}
	spec := strings.TrimSpace(composer.Require["php"])
	if spec == "" {
		return &platform.Detection{}, nil
	}
	return &platform.Detection{VersionSpec: spec, Origin: composerJSON + " require.php"}, nil
}

func init() {
	platform.Register(New())
}
