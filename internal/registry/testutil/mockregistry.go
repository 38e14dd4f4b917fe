// Package testutil provides a deterministic in-memory OCI registry for
// testing image verification.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// MockRegistry is an in-memory OCI registry backed by go-containerregistry.
// It tracks HTTP requests for test assertions.
type MockRegistry struct {
	Server   *httptest.Server
	mu       sync.Mutex
	requests []string
	delays   map[string]time.Duration // repo prefix -> artificial delay
	failures map[string]int           // repo prefix -> remaining 503 responses
}

// New creates and starts a mock registry server.
func New() *MockRegistry {
	mr := &MockRegistry{
		delays:   make(map[string]time.Duration),
		failures: make(map[string]int),
	}
	handler := registry.New()
	mr.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := r.Method + " " + r.URL.Path
		mr.mu.Lock()
		mr.requests = append(mr.requests, req)
		// Check for artificial delay on this repo.
		var delay time.Duration
		for prefix, d := range mr.delays {
			if strings.Contains(r.URL.Path, prefix) {
				delay = d
				break
			}
		}
		fail := false
		for prefix, n := range mr.failures {
			if n > 0 && strings.Contains(r.URL.Path, prefix) {
				mr.failures[prefix] = n - 1
				fail = true
				break
			}
		}
		mr.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		handler.ServeHTTP(w, r)
	}))
	return mr
}

// SetDelay registers an artificial delay for any request whose path contains
// the given repo prefix (e.g. "library/slowimage"). The delay is applied
// before the real handler responds; it is context-aware and cancellable.
func (mr *MockRegistry) SetDelay(repo string, delay time.Duration) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.delays[repo] = delay
}

// FailNext makes the next n requests whose path contains repo fail with
// 503 Service Unavailable.
func (mr *MockRegistry) FailNext(repo string, n int) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.failures[repo] = n
}

// Close shuts down the server.
func (mr *MockRegistry) Close() { mr.Server.Close() }

// Host returns "host:port" of the mock registry.
func (mr *MockRegistry) Host() string { return mr.Server.Listener.Addr().String() }

// Requests returns a copy of all requests recorded since the last reset.
func (mr *MockRegistry) Requests() []string {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	out := make([]string, len(mr.requests))
	copy(out, mr.requests)
	return out
}

// ResetRequests clears the recorded requests.
func (mr *MockRegistry) ResetRequests() {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.requests = nil
}

// HasRequest checks whether any recorded request contains the pattern.
func (mr *MockRegistry) HasRequest(pattern string) bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	for _, r := range mr.requests {
		if strings.Contains(r, pattern) {
			return true
		}
	}
	return false
}

// Ref returns the reference of repo:tag on this registry.
func (mr *MockRegistry) Ref(repo, tag string) string {
	return mr.Host() + "/" + repo + ":" + tag
}

// ImageOpts configures a single-platform image pushed to the mock registry.
type ImageOpts struct {
	Repo    string // e.g. "oryx/python"
	Tag     string // e.g. "3.8"
	OS      string // e.g. "linux"
	Arch    string // e.g. "amd64"
	Variant string // e.g. "v8" (optional)
}

// AddImage pushes a single-platform image and returns its digest.
func (mr *MockRegistry) AddImage(opts ImageOpts) (string, error) {
	img, err := buildImage(opts)
	if err != nil {
		return "", fmt.Errorf("build image: %w", err)
	}

	ref, err := name.ParseReference(mr.Ref(opts.Repo, opts.Tag), name.Insecure)
	if err != nil {
		return "", fmt.Errorf("parse ref: %w", err)
	}

	if err := remote.Write(ref, img); err != nil {
		return "", fmt.Errorf("push image: %w", err)
	}

	d, err := img.Digest()
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// AddIndex pushes a multi-arch image index (manifest list) and returns the index digest.
// Each entry in manifests is pushed as a child image under the same repo.
func (mr *MockRegistry) AddIndex(repo, tag string, manifests []ImageOpts) (string, error) {
	var adds []mutate.IndexAddendum
	for _, m := range manifests {
		img, err := buildImage(m)
		if err != nil {
			return "", fmt.Errorf("build image %s/%s: %w", m.OS, m.Arch, err)
		}
		platform := &v1.Platform{
			OS:           m.OS,
			Architecture: m.Arch,
			Variant:      m.Variant,
		}
		adds = append(adds, mutate.IndexAddendum{
			Add: img,
			Descriptor: v1.Descriptor{
				Platform: platform,
			},
		})
	}

	idx := mutate.AppendManifests(empty.Index, adds...)

	ref, err := name.ParseReference(mr.Ref(repo, tag), name.Insecure)
	if err != nil {
		return "", fmt.Errorf("parse ref: %w", err)
	}

	if err := remote.WriteIndex(ref, idx); err != nil {
		return "", fmt.Errorf("push index: %w", err)
	}

	d, err := idx.Digest()
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// buildImage creates a single-platform OCI image for the given platform.
func buildImage(opts ImageOpts) (v1.Image, error) {
	// Start from a random image (gives us a non-empty layer so the manifest is valid).
	img, err := random.Image(256, 1)
	if err != nil {
		return nil, err
	}

	// Set platform via config file.
	cfgFile, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}
	cfgFile.OS = opts.OS
	cfgFile.Architecture = opts.Arch
	cfgFile.Variant = opts.Variant
	cfgFile.Config.Labels = map[string]string{"org.opencontainers.image.ref.name": opts.Tag}

	img, err = mutate.ConfigFile(img, cfgFile)
	if err != nil {
		return nil, err
	}

	// Ensure media type is OCI.
	img = mutate.MediaType(img, types.OCIManifestSchema1)
	return img, nil
}
