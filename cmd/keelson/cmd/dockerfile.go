package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/wharflab/keelson/internal/dockerfile"
	"github.com/wharflab/keelson/internal/registry"
	"github.com/wharflab/keelson/internal/selection"
)

func dockerfileCommand() *cli.Command {
	return &cli.Command{
		Name:      "dockerfile",
		Usage:     "Generate a Dockerfile for a source directory",
		ArgsUsage: "[SOURCE_DIR]",
		Flags:     dockerfileFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			r, err := newRun(cmd)
			if err != nil {
				return exitWith(cmd, ExitConfigError, err)
			}

			d, err := r.engine.Explain(ctx, r.bctx)
			if err != nil {
				return exitWith(cmd, decisionExitCode(err), err)
			}

			id, text, err := r.templateSource()
			if err != nil {
				return exitWith(cmd, ExitConfigError, err)
			}
			var opts []dockerfile.RendererOption
			if text != "" {
				opts = append(opts, dockerfile.WithTemplate(id, text))
			}
			props := r.properties(d)
			out, err := dockerfile.NewRenderer(opts...).Render(id, props)
			if err != nil {
				return exitWith(cmd, ExitRenderError, err)
			}

			// the runtime-only template never pulls the build image
			refs := []string{props.BuildImage(), props.RuntimeImage()}
			if id == dockerfile.TemplateRuntime {
				refs = refs[1:]
			}
			if _, err := r.verify(ctx, refs...); err != nil {
				return exitWith(cmd, verifyExitCode(err), err)
			}

			return writeOutput(cmd, cmd.String("output"), out)
		},
	}
}

// writeOutput writes content to stdout, stderr, or a file.
func writeOutput(cmd *cli.Command, path, content string) error {
	w, closeFn, err := reportWriter(cmd, path)
	if err != nil {
		return exitWith(cmd, ExitConfigError, err)
	}
	_, err = io.WriteString(w, content)
	if cerr := closeFn(); err == nil {
		err = cerr
	}
	if err != nil {
		return exitWith(cmd, ExitConfigError, err)
	}
	return nil
}

// decisionExitCode maps a detection or selection failure to an exit code.
func decisionExitCode(err error) int {
	var uerr *selection.UnsupportedPlatformError
	if errors.As(err, &uerr) {
		return ExitUnsupportedPlatform
	}
	return ExitConfigError
}

// verifyExitCode maps a verification failure to an exit code. Only missing or
// mismatched images are verification failures; a bad mode or platform
// setting is a config error.
func verifyExitCode(err error) int {
	var verr *registry.VerificationError
	if errors.As(err, &verr) || errors.Is(err, context.DeadlineExceeded) {
		return ExitVerificationFailed
	}
	return ExitConfigError
}
