// Package registry verifies that the images a generated Dockerfile refers to
// exist in their registries for the target platform.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ImageChecker looks up an image manifest in a registry.
type ImageChecker interface {
	// Check resolves ref for the given platform.
	//
	// Error contract:
	//   - AuthError: 401/403, missing/expired creds
	//   - NetworkError: transient network failure
	//   - NotFoundError: ref/tag/manifest not found
	//   - PlatformMismatchError: image exists but no manifest matches platform
	Check(ctx context.Context, ref string, platform ocispec.Platform) (ImageInfo, error)
}

// ImageInfo describes a resolved image.
type ImageInfo struct {
	// Ref is the fully qualified reference that was checked.
	Ref string `json:"ref"`

	// Digest is the digest of the manifest selected for the platform.
	Digest digest.Digest `json:"digest"`

	// MediaType is the media type of the top-level manifest.
	MediaType string `json:"mediaType"`

	// Platform is the platform of the selected manifest ("linux/amd64").
	Platform string `json:"platform,omitempty"`
}

// AuthError indicates authentication/authorization failure.
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return fmt.Sprintf("auth error: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError indicates a transient network failure.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError indicates the ref/tag/manifest was not found.
type NotFoundError struct {
	Ref string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s: %v", e.Ref, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// PlatformMismatchError indicates the image exists but no manifest matches
// the requested platform.
type PlatformMismatchError struct {
	Ref       string
	Requested string
	Available []string
}

func (e *PlatformMismatchError) Error() string {
	return fmt.Sprintf("platform mismatch for %s: requested %s, available %v", e.Ref, e.Requested, e.Available)
}

// VerificationError aggregates the images that failed verification.
type VerificationError struct {
	Failures []Result
}

func (e *VerificationError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Err.Error()
	}
	return fmt.Sprintf("%d image(s) failed verification: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is / errors.As.
func (e *VerificationError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
