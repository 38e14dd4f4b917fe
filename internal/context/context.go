// Package context holds the input of a single Dockerfile generation call:
// the source directory plus the user's platform overrides.
// It also answers whether a source path is excluded from the build context
// by .dockerignore, so detectors never look at files the build will not see.
package context

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
)

// DefaultMaxManifestSize is the largest manifest detectors will read (1 MB).
const DefaultMaxManifestSize int64 = 1 << 20

// ErrVersionWithoutPlatform is returned when a platform version is given
// without naming the platform it belongs to.
var ErrVersionWithoutPlatform = errors.New("a platform version requires an explicit platform")

// BuildContext is the immutable input to one generation call.
// Fields must not be modified after New returns.
type BuildContext struct {
	// SourceDir is the absolute path to the application source.
	SourceDir string

	// Platform restricts detection to a single platform (optional).
	Platform string

	// PlatformVersion pins the version of Platform (optional).
	PlatformVersion string

	// DisableMultiPlatformBuild asks the detector for at most one platform.
	DisableMultiPlatformBuild bool

	// MaxManifestSize bounds manifest reads (0 = DefaultMaxManifestSize).
	MaxManifestSize int64

	// mu protects lazy initialization
	mu sync.RWMutex

	patternMatcher *patternmatcher.PatternMatcher
	patterns       []string
	ignoreFile     string
	initialized    bool
	initErr        error
}

// Option configures a BuildContext.
type Option func(*BuildContext)

// WithPlatform pins the platform and, optionally, its version.
func WithPlatform(name, version string) Option {
	return func(ctx *BuildContext) {
		ctx.Platform = name
		ctx.PlatformVersion = version
	}
}

// WithMultiPlatformBuildDisabled limits detection to the primary platform.
func WithMultiPlatformBuildDisabled(disabled bool) Option {
	return func(ctx *BuildContext) {
		ctx.DisableMultiPlatformBuild = disabled
	}
}

// WithMaxManifestSize sets the manifest read limit in bytes.
func WithMaxManifestSize(n int64) Option {
	return func(ctx *BuildContext) {
		ctx.MaxManifestSize = n
	}
}

// New creates a BuildContext for sourceDir.
// The directory must exist.
func New(sourceDir string, opts ...Option) (*BuildContext, error) {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source directory: %s is not a directory", abs)
	}

	ctx := &BuildContext{SourceDir: abs}
	for _, opt := range opts {
		opt(ctx)
	}

	if ctx.PlatformVersion != "" && ctx.Platform == "" {
		return nil, ErrVersionWithoutPlatform
	}
	if ctx.MaxManifestSize <= 0 {
		ctx.MaxManifestSize = DefaultMaxManifestSize
	}
	return ctx, nil
}

// Path returns the absolute path of a source-relative path.
func (ctx *BuildContext) Path(rel string) string {
	return filepath.Join(ctx.SourceDir, filepath.FromSlash(rel))
}

// Rel returns path relative to the source directory, with forward slashes.
func (ctx *BuildContext) Rel(path string) (string, error) {
	rel, err := filepath.Rel(ctx.SourceDir, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsIgnored checks if a path would be ignored by .dockerignore.
// The path should be relative to the source directory.
func (ctx *BuildContext) IsIgnored(path string) (bool, error) {
	if err := ctx.ensureInitialized(); err != nil {
		return false, err
	}

	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	if ctx.patternMatcher == nil {
		return false, nil
	}
	return ctx.patternMatcher.MatchesOrParentMatches(filepath.ToSlash(path))
}

// FileExists reports whether a regular, non-ignored file exists at the
// source-relative path.
func (ctx *BuildContext) FileExists(path string) bool {
	fi, err := os.Stat(ctx.Path(path))
	if err != nil || fi.IsDir() {
		return false
	}
	ignored, err := ctx.IsIgnored(path)
	return err == nil && !ignored
}

// IgnoreFile returns the name of the ignore file that hides paths from
// detection, or "" when the source has none (or it is empty).
func (ctx *BuildContext) IgnoreFile() string {
	if err := ctx.ensureInitialized(); err != nil {
		return ""
	}

	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.ignoreFile
}

// Patterns returns the .dockerignore patterns.
func (ctx *BuildContext) Patterns() []string {
	if err := ctx.ensureInitialized(); err != nil {
		return nil
	}

	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.patterns
}

// ensureInitialized lazily loads .dockerignore patterns.
func (ctx *BuildContext) ensureInitialized() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.initialized {
		return ctx.initErr
	}

	ctx.initialized = true
	ctx.ignoreFile, ctx.patterns, ctx.initErr = loadIgnoreFile(ctx.SourceDir)
	if ctx.initErr != nil {
		return ctx.initErr
	}

	if len(ctx.patterns) > 0 {
		ctx.patternMatcher, ctx.initErr = patternmatcher.New(ctx.patterns)
	}

	return ctx.initErr
}

// IgnoreFileNames are the ignore files honored in a source directory, in
// lookup order. .containerignore is the Podman spelling.
var IgnoreFileNames = []string{".dockerignore", ".containerignore"}

// loadIgnoreFile returns the first ignore file in dir that has patterns.
// A .dockerignore holding only comments does not shadow .containerignore.
func loadIgnoreFile(dir string) (string, []string, error) {
	for _, name := range IgnoreFileNames {
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		patterns, err := ignorefile.ReadAll(f)
		f.Close()
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(patterns) > 0 {
			return name, patterns, nil
		}
	}
	return "", nil, nil
}
