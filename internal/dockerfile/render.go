// Package dockerfile renders an image selection into a Dockerfile and checks
// that the result is a well-formed Dockerfile.
package dockerfile

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/wharflab/keelson/internal/selection"
)

// Built-in template ids.
const (
	// TemplateDockerfile builds the source in the build image and copies the
	// output into the runtime image.
	TemplateDockerfile = "dockerfile"
	// TemplateRuntime only assembles the runtime image from prebuilt output.
	TemplateRuntime = "dockerfile-runtime"
)

// Default image repositories.
const (
	DefaultBuildRepository   = "mcr.microsoft.com/oryx/build"
	DefaultRuntimeRepository = "mcr.microsoft.com/oryx"
)

//go:embed templates/*.tmpl
var builtinFS embed.FS

// ErrTemplateNotFound is wrapped by TemplateRenderError for unknown ids.
var ErrTemplateNotFound = errors.New("template not found")

// Properties are the values available to a template.
type Properties struct {
	selection.ImageSelection

	// BuildImageRepository is the repository of the build image, without tag.
	BuildImageRepository string

	// RuntimeImageRepository is the registry path under which runtime images
	// are published; the runtime image name is appended to it.
	RuntimeImageRepository string

	// Platforms lists the detected platforms ("node@12.20.0") for comments.
	Platforms []string
}

// TemplateRenderError is returned when a template is missing, fails to
// execute, or produces an invalid Dockerfile.
type TemplateRenderError struct {
	TemplateID string
	Err        error
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("render template %q: %v", e.TemplateID, e.Err)
}

func (e *TemplateRenderError) Unwrap() error { return e.Err }

// Renderer renders Dockerfile templates. It is safe for concurrent use once
// constructed.
type Renderer struct {
	sources map[string]string
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTemplate adds a template under id, replacing a built-in of the same id.
func WithTemplate(id, text string) RendererOption {
	return func(r *Renderer) {
		r.sources[id] = text
	}
}

// NewRenderer creates a Renderer with the built-in templates.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{sources: make(map[string]string)}
	for _, id := range []string{TemplateDockerfile, TemplateRuntime} {
		data, err := builtinFS.ReadFile("templates/" + id + ".tmpl")
		if err != nil {
			panic(err)
		}
		r.sources[id] = string(data)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Templates returns the available template ids, sorted.
func (r *Renderer) Templates() []string {
	return slices.Sorted(maps.Keys(r.sources))
}

// Render executes the template with props and validates the output.
func (r *Renderer) Render(templateID string, props Properties) (string, error) {
	src, ok := r.sources[templateID]
	if !ok {
		return "", &TemplateRenderError{
			TemplateID: templateID,
			Err:        fmt.Errorf("%w (available: %s)", ErrTemplateNotFound, strings.Join(r.Templates(), ", ")),
		}
	}
	if err := props.validate(); err != nil {
		return "", &TemplateRenderError{TemplateID: templateID, Err: err}
	}

	tmpl, err := template.New(templateID).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(src)
	if err != nil {
		return "", &TemplateRenderError{TemplateID: templateID, Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, props); err != nil {
		return "", &TemplateRenderError{TemplateID: templateID, Err: err}
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if err := Validate([]byte(out)); err != nil {
		return "", &TemplateRenderError{TemplateID: templateID, Err: err}
	}
	return out, nil
}

// validate rejects empty required properties.
func (p Properties) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"BuildImageTag":          p.BuildImageTag,
		"RuntimeImageName":       p.RuntimeImageName,
		"RuntimeImageTag":        p.RuntimeImageTag,
		"BuildImageRepository":   p.BuildImageRepository,
		"RuntimeImageRepository": p.RuntimeImageRepository,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required properties: %s", strings.Join(missing, ", "))
	}
	return nil
}

// BuildImage returns the full build image reference.
func (p Properties) BuildImage() string {
	return p.BuildImageRepository + ":" + p.BuildImageTag
}

// RuntimeImage returns the full runtime image reference.
func (p Properties) RuntimeImage() string {
	return strings.TrimSuffix(p.RuntimeImageRepository, "/") + "/" + p.RuntimeImageName + ":" + p.RuntimeImageTag
}
