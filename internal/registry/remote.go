package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/containerd/platforms"
	"github.com/distribution/reference"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// RemoteChecker checks images with go-containerregistry, using the docker
// credential keychain for authentication.
type RemoteChecker struct {
	insecure  bool
	timeout   time.Duration
	keychain  authn.Keychain
	userAgent string
}

// RemoteOption configures a RemoteChecker.
type RemoteOption func(*RemoteChecker)

// WithInsecure allows plain HTTP registries.
func WithInsecure(insecure bool) RemoteOption {
	return func(c *RemoteChecker) {
		c.insecure = insecure
	}
}

// WithRequestTimeout bounds each registry round trip (0 = no per-request limit).
func WithRequestTimeout(d time.Duration) RemoteOption {
	return func(c *RemoteChecker) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent sent to registries.
func WithUserAgent(ua string) RemoteOption {
	return func(c *RemoteChecker) {
		c.userAgent = ua
	}
}

// NewRemoteChecker creates a RemoteChecker.
func NewRemoteChecker(opts ...RemoteOption) *RemoteChecker {
	c := &RemoteChecker{keychain: authn.DefaultKeychain}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check issues a HEAD for the manifest and, for image indexes and
// single-platform images, confirms a manifest exists for platform.
func (c *RemoteChecker) Check(ctx context.Context, ref string, platform ocispec.Platform) (ImageInfo, error) {
	normalized, err := NormalizeRef(ref)
	if err != nil {
		return ImageInfo{}, &NotFoundError{Ref: ref, Err: fmt.Errorf("invalid reference: %w", err)}
	}

	var nameOpts []name.Option
	if c.insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	nref, err := name.ParseReference(normalized, nameOpts...)
	if err != nil {
		return ImageInfo{}, &NotFoundError{Ref: ref, Err: fmt.Errorf("invalid reference: %w", err)}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	opts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(c.keychain),
	}
	if c.userAgent != "" {
		opts = append(opts, remote.WithUserAgent(c.userAgent))
	}

	desc, err := remote.Head(nref, opts...)
	if err != nil {
		return ImageInfo{}, classifyRemoteError(ref, err)
	}

	info := ImageInfo{
		Ref:       normalized,
		Digest:    digest.Digest(desc.Digest.String()),
		MediaType: string(desc.MediaType),
	}
	if err := info.Digest.Validate(); err != nil {
		return ImageInfo{}, &NetworkError{Err: fmt.Errorf("registry %s returned invalid digest: %w", ref, err)}
	}

	matcher := platforms.NewMatcher(platforms.Normalize(platform))
	requested := platforms.Format(platform)

	if desc.MediaType.IsIndex() {
		idx, err := remote.Index(nref, opts...)
		if err != nil {
			return ImageInfo{}, classifyRemoteError(ref, err)
		}
		manifest, err := idx.IndexManifest()
		if err != nil {
			return ImageInfo{}, classifyRemoteError(ref, err)
		}
		var available []string
		for _, m := range manifest.Manifests {
			if m.Platform == nil {
				continue
			}
			p := toOCIPlatform(m.Platform)
			if matcher.Match(p) {
				info.Digest = digest.Digest(m.Digest.String())
				info.Platform = platforms.Format(p)
				return info, nil
			}
			available = append(available, platforms.Format(p))
		}
		slices.Sort(available)
		return ImageInfo{}, &PlatformMismatchError{Ref: ref, Requested: requested, Available: available}
	}

	img, err := remote.Image(nref, opts...)
	if err != nil {
		return ImageInfo{}, classifyRemoteError(ref, err)
	}
	cfg, err := img.ConfigFile()
	if err != nil {
		return ImageInfo{}, classifyRemoteError(ref, err)
	}
	p := ocispec.Platform{OS: cfg.OS, Architecture: cfg.Architecture, Variant: cfg.Variant}
	if !matcher.Match(p) {
		return ImageInfo{}, &PlatformMismatchError{Ref: ref, Requested: requested, Available: []string{platforms.Format(p)}}
	}
	info.Platform = platforms.Format(p)
	return info, nil
}

// NormalizeRef returns the fully qualified form of an image reference,
// adding the default registry and the "latest" tag where omitted.
func NormalizeRef(ref string) (string, error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", err
	}
	return reference.TagNameOnly(named).String(), nil
}

func toOCIPlatform(p *v1.Platform) ocispec.Platform {
	return ocispec.Platform{
		OS:           p.OS,
		Architecture: p.Architecture,
		Variant:      p.Variant,
		OSVersion:    p.OSVersion,
	}
}

// classifyRemoteError wraps go-containerregistry errors into typed errors.
func classifyRemoteError(ref string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &NetworkError{Err: fmt.Errorf("registry %s: %w", ref, err)}
	}

	// Typed error: transport.Error carries the registry API error codes and
	// the HTTP status (HEAD responses have no body, so only the status).
	var terr *transport.Error
	if errors.As(err, &terr) {
		for _, d := range terr.Errors {
			switch d.Code {
			case transport.UnauthorizedErrorCode, transport.DeniedErrorCode:
				return &AuthError{Err: err}
			case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode, transport.BlobUnknownErrorCode:
				return &NotFoundError{Ref: ref, Err: err}
			case transport.TooManyRequestsErrorCode, transport.UnavailableErrorCode:
				return &NetworkError{Err: err}
			}
		}
		switch terr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Err: err}
		case http.StatusNotFound:
			return &NotFoundError{Ref: ref, Err: err}
		default:
			return &NetworkError{Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{Err: err}
	}

	errStr := err.Error()
	if strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "denied") {
		return &AuthError{Err: err}
	}
	if strings.Contains(errStr, "not found") || strings.Contains(errStr, "manifest unknown") {
		return &NotFoundError{Ref: ref, Err: err}
	}
	return &NetworkError{Err: err}
}
