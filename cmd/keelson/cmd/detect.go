package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/wharflab/keelson/internal/registry"
	"github.com/wharflab/keelson/internal/reporter"
	"github.com/wharflab/keelson/internal/selection"
)

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Report detected platforms and the images they select",
		ArgsUsage: "[SOURCE_DIR]",
		Flags:     detectFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			r, err := newRun(cmd)
			if err != nil {
				return exitWith(cmd, ExitConfigError, err)
			}
			format, err := reporter.ParseFormat(r.cfg.Output.Format)
			if err != nil {
				return exitWith(cmd, ExitConfigError, err)
			}

			d, err := r.engine.Explain(ctx, r.bctx)
			var uerr *selection.UnsupportedPlatformError
			if err != nil && !errors.As(err, &uerr) {
				return exitWith(cmd, ExitConfigError, err)
			}

			report := reporter.NewReport(r.bctx.SourceDir, d, r.properties(d))
			report.IgnoreFile = r.bctx.IgnoreFile()
			var verr error
			if report.Detected() {
				var results []registry.Result
				results, verr = r.verify(ctx, report.BuildImage, report.RuntimeImage)
				report.AddVerification(results)
				if verr != nil && verifyExitCode(verr) == ExitConfigError {
					return exitWith(cmd, ExitConfigError, verr)
				}
			}

			w, closeFn, err := reportWriter(cmd, r.cfg.Output.Path)
			if err != nil {
				return exitWith(cmd, ExitConfigError, err)
			}
			var color *bool
			if cmd.Bool("no-color") {
				noColor := false
				color = &noColor
			}
			rep, err := reporter.New(reporter.Options{Format: format, Writer: w, Color: color})
			if err == nil {
				err = rep.Report(report)
			}
			if cerr := closeFn(); err == nil {
				err = cerr
			}
			if err != nil {
				return exitWith(cmd, ExitConfigError, err)
			}

			switch {
			case uerr != nil:
				return exitWith(cmd, ExitUnsupportedPlatform, uerr)
			case verr != nil:
				return exitWith(cmd, ExitVerificationFailed, verr)
			}
			return nil
		},
	}
}

// reportWriter is reporter.GetWriter with the standard streams taken from
// the command, so tests can capture them.
func reportWriter(cmd *cli.Command, path string) (io.Writer, func() error, error) {
	switch path {
	case "stdout", "", "-":
		return cmd.Root().Writer, func() error { return nil }, nil
	case "stderr":
		return cmd.Root().ErrWriter, func() error { return nil }, nil
	default:
		return reporter.GetWriter(path)
	}
}
