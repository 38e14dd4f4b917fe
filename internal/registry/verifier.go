package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
	"github.com/containerd/platforms"
	"github.com/gkampitakis/ciinfo"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Mode controls when images are verified.
type Mode string

const (
	// ModeAuto verifies only when running in CI.
	ModeAuto Mode = "auto"
	// ModeOn always verifies.
	ModeOn Mode = "on"
	// ModeOff never verifies.
	ModeOff Mode = "off"
)

// ParseMode parses a verification mode. The empty string means ModeOff.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeOff, nil
	case ModeAuto, ModeOn, ModeOff:
		return m, nil
	default:
		return "", fmt.Errorf("unknown verification mode %q (valid: auto, on, off)", s)
	}
}

// ShouldVerify reports whether images are verified in this mode and
// environment.
func (m Mode) ShouldVerify() bool {
	switch m {
	case ModeOn:
		return true
	case ModeAuto:
		return ciinfo.IsCI
	default:
		return false
	}
}

// DefaultPlatform is the platform checked when none is configured.
const DefaultPlatform = "linux/amd64"

// ParsePlatform parses an OS/arch[/variant] specifier.
func ParsePlatform(s string) (ocispec.Platform, error) {
	if s == "" {
		s = DefaultPlatform
	}
	p, err := platforms.Parse(s)
	if err != nil {
		return ocispec.Platform{}, err
	}
	return platforms.Normalize(p), nil
}

// Result is the outcome of verifying one image.
type Result struct {
	Ref  string    `json:"ref"`
	Info ImageInfo `json:"info"`
	Err  error     `json:"-"`
}

// Verifier checks a set of image references concurrently, retrying
// transient failures.
type Verifier struct {
	checker  ImageChecker
	platform ocispec.Platform
	log      logrus.FieldLogger
	backoff  func() backoff.BackOff
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithPlatform sets the target platform.
func WithPlatform(p ocispec.Platform) VerifierOption {
	return func(v *Verifier) {
		v.platform = p
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) VerifierOption {
	return func(v *Verifier) {
		v.log = log
	}
}

// WithBackOff replaces the retry schedule.
func WithBackOff(fn func() backoff.BackOff) VerifierOption {
	return func(v *Verifier) {
		v.backoff = fn
	}
}

// NewVerifier creates a Verifier over checker.
func NewVerifier(checker ImageChecker, opts ...VerifierOption) *Verifier {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	v := &Verifier{
		checker:  checker,
		platform: ocispec.Platform{OS: "linux", Architecture: "amd64"},
		log:      discard,
		backoff:  func() backoff.BackOff { return newVerifierBackoff() },
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks every ref. Results are in input order. The error is a
// *VerificationError listing the failed refs, or the context error.
func (v *Verifier) Verify(ctx context.Context, refs ...string) ([]Result, error) {
	results := make([]Result, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ref := range refs {
		g.Go(func() error {
			info, err := v.checkWithRetry(gctx, ref)
			results[i] = Result{Ref: ref, Info: info, Err: err}

			log := v.log.WithField("image", ref)
			if err != nil {
				log.WithError(err).Warn("image verification failed")
			} else {
				log.WithField("digest", info.Digest).Info("image verified")
			}
			// per-image failures are collected, not propagated, so every
			// image gets checked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		return results, &VerificationError{Failures: failed}
	}
	return results, nil
}

// checkWithRetry applies the retry policy per error type:
//   - PlatformMismatchError, NotFoundError: no retry
//   - AuthError: retry once
//   - NetworkError / other: retry with exponential backoff (up to 3 total attempts)
func (v *Verifier) checkWithRetry(ctx context.Context, ref string) (ImageInfo, error) {
	var authRetried bool

	return backoff.Retry(ctx, func() (ImageInfo, error) {
		info, err := v.checker.Check(ctx, ref, v.platform)
		if err == nil {
			return info, nil
		}

		var platErr *PlatformMismatchError
		if errors.As(err, &platErr) {
			return ImageInfo{}, backoff.Permanent(err)
		}

		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return ImageInfo{}, backoff.Permanent(err)
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			if authRetried {
				return ImageInfo{}, backoff.Permanent(err)
			}
			authRetried = true
			return ImageInfo{}, err
		}

		v.log.WithField("image", ref).WithError(err).Debug("retrying image check")
		return ImageInfo{}, err
	},
		backoff.WithBackOff(v.backoff()),
		backoff.WithMaxTries(3),       // 1 original + 2 retries
		backoff.WithMaxElapsedTime(0), // rely on context for overall timeout
	)
}

func newVerifierBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.Multiplier = 2.0
	return b
}
