package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wharflab/keelson/internal/config"
	buildcontext "github.com/wharflab/keelson/internal/context"
	"github.com/wharflab/keelson/internal/dockerfile"
	"github.com/wharflab/keelson/internal/platform"
	"github.com/wharflab/keelson/internal/registry"
	"github.com/wharflab/keelson/internal/selection"
	"github.com/wharflab/keelson/internal/version"
)

// run is one detection run: the resolved config plus everything derived
// from it.
type run struct {
	sourceDir string
	cfg       *config.Config
	log       *logrus.Logger
	bctx      *buildcontext.BuildContext
	engine    *selection.Engine

	// templateFlag is set when --template-file was given; such paths are
	// relative to the working directory rather than the config file.
	templateFlag bool
}

// sourceDirArg returns the source directory argument, defaulting to ".".
func sourceDirArg(cmd *cli.Command) (string, error) {
	switch cmd.Args().Len() {
	case 0:
		return ".", nil
	case 1:
		return cmd.Args().First(), nil
	default:
		return "", errors.New("expected at most one source directory")
	}
}

// newRun loads the config for the source directory and builds the detector
// and selection engine from it. Errors are configuration errors.
func newRun(cmd *cli.Command) (*run, error) {
	sourceDir, err := sourceDirArg(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithOverrides(sourceDir, cmd.String("config"), flagOverrides(cmd))
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Log.Level, cmd.Root().ErrWriter)
	if err != nil {
		return nil, err
	}
	if cfg.ConfigFile != "" {
		log.WithField("path", cfg.ConfigFile).Debug("loaded config file")
	}

	bctx, err := buildcontext.New(sourceDir,
		buildcontext.WithPlatform(strings.ToLower(cmd.String("platform")), cmd.String("platform-version")),
		buildcontext.WithMultiPlatformBuildDisabled(cfg.Detection.DisableMultiPlatformBuild),
		buildcontext.WithMaxManifestSize(cfg.Detection.MaxManifestSize),
	)
	if err != nil {
		return nil, err
	}

	versions, err := cfg.PlatformVersions()
	if err != nil {
		return nil, err
	}
	detOpts := []platform.DetectorOption{
		platform.WithExcludePatterns(cfg.Detection.Exclude),
		platform.WithLogger(log),
	}
	for name, v := range versions {
		detOpts = append(detOpts, platform.WithVersions(name, v))
	}

	table, err := cfg.SlimTable()
	if err != nil {
		return nil, err
	}
	rule, err := selection.ParsePrimaryRule(cfg.Selection.Primary)
	if err != nil {
		return nil, err
	}
	engine := selection.NewEngine(platform.NewDetector(nil, detOpts...),
		selection.WithSlimTable(table),
		selection.WithAliases(cfg.RuntimeAliases()),
		selection.WithPrimaryRule(rule),
		selection.WithLogger(log),
	)

	return &run{
		sourceDir: sourceDir,
		cfg:       cfg,
		log:       log,
		bctx:      bctx,
		engine:    engine,

		templateFlag: cmd.IsSet("template-file"),
	}, nil
}

func newLogger(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log, nil
}

// properties builds the template properties for a decision.
func (r *run) properties(d *selection.Decision) dockerfile.Properties {
	props := dockerfile.Properties{
		BuildImageRepository:   r.cfg.Images.BuildRepository,
		RuntimeImageRepository: r.cfg.Images.RuntimeRepository,
	}
	if d == nil {
		return props
	}
	props.ImageSelection = d.Selection
	for _, c := range d.Candidates {
		props.Platforms = append(props.Platforms, c.String())
	}
	return props
}

// verify checks refs against their registries when the configured mode asks
// for it. It returns nil results when verification is skipped.
func (r *run) verify(ctx context.Context, refs ...string) ([]registry.Result, error) {
	mode, err := registry.ParseMode(r.cfg.Registry.Verify)
	if err != nil {
		return nil, err
	}
	if !mode.ShouldVerify() {
		r.log.WithField("mode", mode).Debug("image verification skipped")
		return nil, nil
	}
	target, err := registry.ParsePlatform(r.cfg.Registry.Platform)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RegistryTimeout())
	defer cancel()

	checker := registry.NewRemoteChecker(
		registry.WithInsecure(r.cfg.Registry.Insecure),
		registry.WithUserAgent(version.UserAgent()),
	)
	return registry.NewVerifier(checker,
		registry.WithPlatform(target),
		registry.WithLogger(r.log),
	).Verify(ctx, refs...)
}

// templateSource resolves the configured template to an id and, for custom
// template files, its text.
func (r *run) templateSource() (string, string, error) {
	path := r.cfg.Template.Path
	if path == "" {
		return r.cfg.Template.ID, "", nil
	}
	if !filepath.IsAbs(path) && r.cfg.ConfigFile != "" && !r.templateFlag {
		path = filepath.Join(filepath.Dir(r.cfg.ConfigFile), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return customTemplateID, string(data), nil
}

// customTemplateID is the renderer id of a template file.
const customTemplateID = "custom"
