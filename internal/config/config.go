// Package config provides configuration loading and discovery for keelson.
//
// Configuration is loaded from multiple sources with the following priority
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (KEELSON_* prefix)
//  3. Config file (closest .keelson.toml or keelson.toml)
//  4. Built-in defaults
//
// Config file discovery walks up the filesystem from the source directory
// until a config file is found. The closest config wins (no merging).
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	buildcontext "github.com/wharflab/keelson/internal/context"
	"github.com/wharflab/keelson/internal/dockerfile"
	"github.com/wharflab/keelson/internal/platform"
	"github.com/wharflab/keelson/internal/selection"
	"github.com/wharflab/keelson/internal/slim"
)

// ConfigFileNames defines the config file names to search for, in priority order.
var ConfigFileNames = []string{".keelson.toml", "keelson.toml"}

// EnvPrefix is the prefix for environment variables.
const EnvPrefix = "KEELSON_"

// Config represents the complete keelson configuration.
type Config struct {
	// Images configures where build and runtime images are pulled from.
	Images ImagesConfig `json:"images,omitempty" koanf:"images" jsonschema:"Image repositories and runtime image names"`

	// Platforms overrides supported and default versions per platform.
	Platforms map[string]PlatformConfig `json:"platforms,omitempty" koanf:"platforms" jsonschema:"Per-platform version overrides"`

	// Slim is the slim build image compatibility table.
	Slim SlimConfig `json:"slim,omitempty" koanf:"slim" jsonschema:"Slim build image compatibility table"`

	// Selection configures the runtime pair rule.
	Selection SelectionConfig `json:"selection,omitempty" koanf:"selection" jsonschema:"Runtime platform selection"`

	// Detection configures platform detection.
	Detection DetectionConfig `json:"detection,omitempty" koanf:"detection" jsonschema:"Platform detection"`

	// Template selects the Dockerfile template.
	Template TemplateConfig `json:"template,omitempty" koanf:"template" jsonschema:"Dockerfile template"`

	// Output configures report format and destination.
	Output OutputConfig `json:"output,omitempty" koanf:"output" jsonschema:"Report output"`

	// Registry configures optional image verification.
	Registry RegistryConfig `json:"registry,omitempty" koanf:"registry" jsonschema:"Image verification against registries"`

	// Log configures logging.
	Log LogConfig `json:"log,omitempty" koanf:"log" jsonschema:"Logging"`

	// ConfigFile is the path to the config file that was loaded (if any).
	// This is metadata, not loaded from config.
	ConfigFile string `json:"-" koanf:"-"`
}

// ImagesConfig configures image repositories.
//
// Example TOML configuration:
//
//	[images]
//	build-repository = "mcr.microsoft.com/oryx/build"
//	runtime-repository = "mcr.microsoft.com/oryx"
//
//	[images.runtime-aliases]
//	dotnet = "dotnetcore"
type ImagesConfig struct {
	BuildRepository   string            `json:"build-repository,omitempty" koanf:"build-repository" jsonschema:"Repository of the build image"`
	RuntimeRepository string            `json:"runtime-repository,omitempty" koanf:"runtime-repository" jsonschema:"Registry prefix of the runtime images"`
	RuntimeAliases    map[string]string `json:"runtime-aliases,omitempty" koanf:"runtime-aliases" jsonschema:"Platform name to runtime image name"`
}

// PlatformConfig overrides a platform's versions.
type PlatformConfig struct {
	Versions       []string `json:"versions,omitempty" koanf:"versions" jsonschema:"Supported versions with published images"`
	DefaultVersion string   `json:"default-version,omitempty" koanf:"default-version" jsonschema:"Version used when the project declares none"`
}

// SlimConfig is the slim compatibility table.
type SlimConfig struct {
	Version   int                 `json:"version,omitempty" koanf:"version" jsonschema:"Table layout version"`
	Platforms map[string][]string `json:"platforms,omitempty" koanf:"platforms" jsonschema:"Platform name to slim-eligible version prefixes"`
}

// SelectionConfig configures the runtime pair rule.
type SelectionConfig struct {
	// Primary is "last" (default) or "primary".
	Primary string `json:"primary,omitempty" koanf:"primary" jsonschema:"Rule choosing the runtime platform"`
}

// DetectionConfig configures platform detection.
//
// Example TOML configuration:
//
//	[detection]
//	disable-multi-platform-build = true
//	exclude = ["**/node_modules/**"]
type DetectionConfig struct {
	DisableMultiPlatformBuild bool     `json:"disable-multi-platform-build,omitempty" koanf:"disable-multi-platform-build" jsonschema:"Stop at the first detected platform"`
	Exclude                   []string `json:"exclude,omitempty" koanf:"exclude" jsonschema:"Glob patterns hidden from detection"`
	MaxManifestSize           int64    `json:"max-manifest-size,omitempty" koanf:"max-manifest-size" jsonschema:"Largest manifest read in bytes"`
}

// TemplateConfig selects the Dockerfile template.
type TemplateConfig struct {
	ID   string `json:"id,omitempty" koanf:"id" jsonschema:"Built-in template id"`
	Path string `json:"path,omitempty" koanf:"path" jsonschema:"Custom template file, overrides id"`
}

// OutputConfig configures output formatting and behavior.
type OutputConfig struct {
	// Format specifies the detect report format.
	Format string `json:"format,omitempty" koanf:"format" jsonschema:"Detect report format"`

	// Path specifies where to write output.
	Path string `json:"path,omitempty" koanf:"path" jsonschema:"Output path, stdout or stderr"`
}

// RegistryConfig configures image verification.
//
// Example TOML configuration:
//
//	[registry]
//	verify = "auto"
//	timeout = "20s"
//	platform = "linux/arm64"
type RegistryConfig struct {
	// Verify controls when images are verified: auto (CI detection), on, off.
	Verify string `json:"verify,omitempty" koanf:"verify" jsonschema:"When to verify images exist"`

	// Timeout is the wall-clock budget for all registry checks.
	Timeout string `json:"timeout,omitempty" koanf:"timeout" jsonschema:"Verification timeout as a Go duration"`

	// Platform is the OS/arch the images must support.
	Platform string `json:"platform,omitempty" koanf:"platform" jsonschema:"Target platform of the images"`

	// Insecure allows plain HTTP registries.
	Insecure bool `json:"insecure,omitempty" koanf:"insecure" jsonschema:"Allow plain HTTP registries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level,omitempty" koanf:"level" jsonschema:"Log level"`
}

// Default returns the default configuration.
func Default() *Config {
	table := slim.Default()
	slimPlatforms := make(map[string][]string)
	for _, name := range table.Platforms() {
		slimPlatforms[name] = table.Prefixes(name)
	}

	return &Config{
		Images: ImagesConfig{
			BuildRepository:   dockerfile.DefaultBuildRepository,
			RuntimeRepository: dockerfile.DefaultRuntimeRepository,
			RuntimeAliases:    selection.DefaultAliases(),
		},
		Platforms: map[string]PlatformConfig{},
		Slim: SlimConfig{
			Version:   table.Version(),
			Platforms: slimPlatforms,
		},
		Selection: SelectionConfig{
			Primary: string(selection.RuleLast),
		},
		Detection: DetectionConfig{
			Exclude:         []string{"**/node_modules/**", "**/.git/**"},
			MaxManifestSize: buildcontext.DefaultMaxManifestSize,
		},
		Template: TemplateConfig{
			ID: dockerfile.TemplateDockerfile,
		},
		Output: OutputConfig{
			Format: "text",
			Path:   "stdout",
		},
		Registry: RegistryConfig{
			Verify:   "off",
			Timeout:  "20s",
			Platform: "linux/amd64",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration for a source directory.
// It discovers the closest config file, loads it, and applies
// environment variable overrides.
func Load(sourceDir string) (*Config, error) {
	return loadWithConfigPath(Discover(sourceDir))
}

// LoadFromFile loads configuration from a specific config file path.
// Unlike Load, it does not perform config discovery.
func LoadFromFile(configPath string) (*Config, error) {
	if !fileExists(configPath) {
		return nil, fmt.Errorf("config file %s: %w", configPath, os.ErrNotExist)
	}
	return loadWithConfigPath(configPath)
}

// loadWithConfigPath is an internal helper that loads config with an optional config file path.
func loadWithConfigPath(configPath string) (*Config, error) {
	return loadWithConfigPathAndOverrides(configPath, nil)
}

// SlimTable builds the slim compatibility table.
func (c *Config) SlimTable() (*slim.Table, error) {
	return slim.New(c.Slim.Version, c.Slim.Platforms)
}

// PlatformVersions returns the per-platform version overrides. Platforms
// without a versions list keep their built-in versions.
func (c *Config) PlatformVersions() (map[string]platform.Versions, error) {
	out := make(map[string]platform.Versions, len(c.Platforms))
	for name, pc := range c.Platforms {
		if len(pc.Versions) == 0 {
			if pc.DefaultVersion != "" {
				return nil, fmt.Errorf("platforms.%s: default-version requires versions", name)
			}
			continue
		}
		v := platform.Versions{Supported: pc.Versions, Default: pc.DefaultVersion}
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("platforms.%s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// RuntimeAliases returns the platform to runtime image name table.
func (c *Config) RuntimeAliases() map[string]string {
	return maps.Clone(c.Images.RuntimeAliases)
}

// RegistryTimeout returns the parsed verification timeout.
func (c *Config) RegistryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Registry.Timeout)
	if err != nil {
		// validated on load
		return 0
	}
	return d
}

// knownHyphenatedKeys maps dot-separated patterns to their hyphenated equivalents.
// Add new entries here when adding hyphenated config keys.
var knownHyphenatedKeys = map[string]string{
	"build.repository":             "build-repository",
	"runtime.repository":           "runtime-repository",
	"runtime.aliases":              "runtime-aliases",
	"default.version":              "default-version",
	"disable.multi.platform.build": "disable-multi-platform-build",
	"max.manifest.size":            "max-manifest-size",
}

var allowedEnvTopLevelKeys = map[string]struct{}{
	"images":    {},
	"platforms": {},
	"slim":      {},
	"selection": {},
	"detection": {},
	"template":  {},
	"output":    {},
	"registry":  {},
	"log":       {},
}

// envKeyTransform converts environment variable names to config keys.
// KEELSON_SELECTION_PRIMARY -> selection.primary
// KEELSON_DETECTION_DISABLE_MULTI_PLATFORM_BUILD -> detection.disable-multi-platform-build
func envKeyTransform(k, v string) (string, any) {
	s := strings.TrimPrefix(k, EnvPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", ".")
	// Fix known hyphenated keys using lookup table
	for pattern, replacement := range knownHyphenatedKeys {
		s = strings.ReplaceAll(s, pattern, replacement)
	}

	topLevel := s
	if before, _, ok := strings.Cut(s, "."); ok {
		topLevel = before
	}
	if _, ok := allowedEnvTopLevelKeys[topLevel]; !ok {
		return "", nil
	}

	return s, v
}

func loadEnv(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKeyTransform,
	}), nil)
}

func loadDefaults(k *koanf.Koanf) error {
	return k.Load(structs.Provider(Default(), "koanf"), nil)
}

func loadConfigFile(k *koanf.Koanf, configPath string) error {
	if configPath == "" {
		return nil
	}
	if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
		return fmt.Errorf("load %s: %w", configPath, err)
	}
	return nil
}

// Discover finds the closest config file for a source directory.
// It walks up the directory tree starting at dir itself,
// checking for config files at each level.
// Returns empty string if no config file is found.
func Discover(dir string) string {
	// Get absolute path to handle relative paths correctly
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	// A file path starts the walk at its directory.
	if fileExists(absDir) {
		absDir = filepath.Dir(absDir)
	}

	for {
		// Check each config file name in priority order
		for _, name := range ConfigFileNames {
			configPath := filepath.Join(absDir, name)
			if fileExists(configPath) {
				return configPath
			}
		}

		// Move up to parent directory
		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached filesystem root
			break
		}
		absDir = parent
	}

	return ""
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
