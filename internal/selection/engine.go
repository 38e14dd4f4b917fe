package selection

import (
	"context"
	"errors"
	"io"
	"maps"

	"github.com/sirupsen/logrus"

	buildcontext "github.com/wharflab/keelson/internal/context"
	"github.com/wharflab/keelson/internal/platform"
	"github.com/wharflab/keelson/internal/slim"
)

// Detector produces the compatible set for a build context.
// *platform.Detector implements it.
type Detector interface {
	DetectCompatible(ctx context.Context, bctx *buildcontext.BuildContext) (platform.CompatibleSet, error)
}

// Candidate is one compatible pair annotated with its slim eligibility.
type Candidate struct {
	platform.PlatformVersion
	SlimEligible bool `json:"slimEligible"`
}

// Decision records how a selection was reached.
type Decision struct {
	Candidates []Candidate    `json:"candidates"`
	Rule       PrimaryRule    `json:"primaryRule"`
	Winner     Candidate      `json:"runtimePlatform"`
	Selection  ImageSelection `json:"selection"`
}

// Engine turns detector output into an ImageSelection. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	detector Detector
	slim     *slim.Table
	aliases  map[string]string
	rule     PrimaryRule
	log      logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSlimTable replaces the built-in slim compatibility table.
func WithSlimTable(t *slim.Table) Option {
	return func(e *Engine) {
		e.slim = t
	}
}

// WithAliases replaces the platform → runtime image name table.
func WithAliases(aliases map[string]string) Option {
	return func(e *Engine) {
		e.aliases = maps.Clone(aliases)
	}
}

// WithPrimaryRule sets the runtime pair rule.
func WithPrimaryRule(rule PrimaryRule) Option {
	return func(e *Engine) {
		e.rule = rule
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates an Engine with the built-in policy, overridable by opts.
func NewEngine(detector Detector, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		detector: detector,
		slim:     slim.Default(),
		aliases:  DefaultAliases(),
		rule:     RuleLast,
		log:      discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide detects the platforms of bctx and selects the images.
// Detector errors are returned unchanged.
func (e *Engine) Decide(ctx context.Context, bctx *buildcontext.BuildContext) (ImageSelection, error) {
	d, err := e.Explain(ctx, bctx)
	if err != nil {
		return ImageSelection{}, err
	}
	return d.Selection, nil
}

// Explain is Decide with the reasoning attached.
func (e *Engine) Explain(ctx context.Context, bctx *buildcontext.BuildContext) (*Decision, error) {
	set, err := e.detector.DetectCompatible(ctx, bctx)
	if err != nil {
		return nil, err
	}
	d, err := e.Choose(set)
	if err != nil {
		var uerr *UnsupportedPlatformError
		if errors.As(err, &uerr) {
			uerr.SourceDir = bctx.SourceDir
		}
		return nil, err
	}
	return d, nil
}

// Choose applies the selection policy to an already-detected set.
//
// The build image is slim only when every pair is slim-eligible. The runtime
// image comes from the single pair picked by the primary rule.
func (e *Engine) Choose(set platform.CompatibleSet) (*Decision, error) {
	if len(set) == 0 {
		return nil, &UnsupportedPlatformError{}
	}

	d := &Decision{
		Candidates: make([]Candidate, len(set)),
		Rule:       e.rule,
	}
	buildTag := TagSlim
	for i, pv := range set {
		eligible := e.slim.IsSlimEligible(pv.Name, pv.Version)
		if !eligible {
			buildTag = TagLatest
		}
		d.Candidates[i] = Candidate{PlatformVersion: pv, SlimEligible: eligible}
		e.log.WithFields(logrus.Fields{
			"platform": pv.Name,
			"version":  pv.Version,
			"slim":     eligible,
		}).Debug("build image candidate")
	}

	switch e.rule {
	case RulePrimary:
		d.Winner = d.Candidates[0]
	default:
		d.Winner = d.Candidates[len(d.Candidates)-1]
	}

	name := d.Winner.Name
	if alias, ok := e.aliases[name]; ok {
		name = alias
	}
	d.Selection = ImageSelection{
		BuildImageTag:    buildTag,
		RuntimeImageName: name,
		RuntimeImageTag:  Normalize(d.Winner.Version),
	}
	e.log.WithFields(logrus.Fields{
		"rule":      e.rule,
		"platform":  d.Winner.Name,
		"selection": d.Selection.String(),
	}).Info("images selected")
	return d, nil
}
