package platform

import (
	stdcontext "context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/wharflab/keelson/internal/context"
)

// Detector turns a source tree into the ordered set of compatible
// (platform, version) pairs.
type Detector struct {
	registry *Registry
	versions map[string]Versions
	exclude  []string
	log      logrus.FieldLogger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithVersions overrides the supported and default versions of a platform.
func WithVersions(name string, v Versions) DetectorOption {
	return func(d *Detector) {
		d.versions[name] = v
	}
}

// WithExcludePatterns hides matching files from every platform.
func WithExcludePatterns(patterns []string) DetectorOption {
	return func(d *Detector) {
		d.exclude = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) DetectorOption {
	return func(d *Detector) {
		d.log = log
	}
}

// NewDetector creates a Detector over the platforms of reg.
// A nil registry means the default registry.
func NewDetector(reg *Registry, opts ...DetectorOption) *Detector {
	if reg == nil {
		reg = defaultRegistry
	}
	d := &Detector{
		registry: reg,
		versions: make(map[string]Versions),
		log:      discardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Versions returns the effective versions of the named platform.
func (d *Detector) Versions(p Platform) Versions {
	if v, ok := d.versions[p.Name()]; ok {
		return v
	}
	return p.DefaultVersions()
}

// DetectCompatible runs platform detection over bctx.
//
// With an explicit platform only that platform is considered and it is
// trusted even when its manifests are absent; an explicit version bypasses
// manifest inspection entirely. Otherwise every registered platform is tried
// in priority order. The result is empty, not an error, when nothing matches.
func (d *Detector) DetectCompatible(ctx stdcontext.Context, bctx *context.BuildContext) (CompatibleSet, error) {
	if bctx.PlatformVersion != "" && bctx.Platform == "" {
		return nil, context.ErrVersionWithoutPlatform
	}

	src := NewSource(bctx, d.exclude, d.log)

	if bctx.Platform != "" {
		p := d.registry.Get(bctx.Platform)
		if p == nil {
			return nil, &UnknownPlatformError{Name: bctx.Platform, Known: d.registry.Names()}
		}
		if bctx.PlatformVersion != "" {
			pv, err := d.resolve(p, bctx.PlatformVersion, OriginExplicit)
			if err != nil {
				return nil, err
			}
			return CompatibleSet{pv}, nil
		}
		pv, err := d.detectOne(ctx, p, src)
		if err != nil {
			return nil, err
		}
		if pv == nil {
			d.log.WithField("platform", p.Name()).Debug("explicit platform not detected in source; using default version")
			resolved, err := d.resolve(p, "", OriginDefault)
			if err != nil {
				return nil, err
			}
			pv = &resolved
		}
		return CompatibleSet{*pv}, nil
	}

	var set CompatibleSet
	for _, p := range d.registry.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pv, err := d.detectOne(ctx, p, src)
		if err != nil {
			return nil, err
		}
		if pv == nil {
			continue
		}
		set = append(set, *pv)
		if bctx.DisableMultiPlatformBuild {
			d.log.WithField("platform", p.Name()).Debug("multi-platform build disabled; stopping at primary platform")
			break
		}
	}
	return set, nil
}

// detectOne runs a single platform. It returns nil when the platform does
// not match.
func (d *Detector) detectOne(ctx stdcontext.Context, p Platform, src *Source) (*PlatformVersion, error) {
	log := d.log.WithField("platform", p.Name())

	det, err := p.Detect(ctx, src)
	if err != nil {
		return nil, err
	}
	if det == nil {
		log.Debug("not detected")
		return nil, nil
	}

	origin := det.Origin
	if det.VersionSpec == "" {
		origin = OriginDefault
	}
	pv, err := d.resolve(p, det.VersionSpec, origin)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"version": pv.Version,
		"spec":    det.VersionSpec,
		"source":  origin,
	}).Info("platform detected")
	return &pv, nil
}

func (d *Detector) resolve(p Platform, spec, origin string) (PlatformVersion, error) {
	versions := d.Versions(p)
	version, err := versions.Resolve(spec)
	if err != nil {
		uerr := &UnsupportedVersionError{
			Platform:  p.Name(),
			Spec:      spec,
			Origin:    origin,
			Supported: versions.Supported,
		}
		if !errors.Is(err, ErrNoMatchingVersion) {
			uerr.Err = err
		}
		return PlatformVersion{}, uerr
	}
	return PlatformVersion{
		Name:    p.Name(),
		Version: version,
		Spec:    spec,
		Origin:  origin,
	}, nil
}
