package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	// register the built-in platform detectors
	_ "github.com/wharflab/keelson/internal/platforms/all"
	"github.com/wharflab/keelson/internal/version"
)

// Exit codes
const (
	ExitSuccess             = 0 // Dockerfile or report written
	ExitUnsupportedPlatform = 1 // No supported platform detected
	ExitConfigError         = 2 // Config, flag, or source input error
	ExitRenderError         = 3 // Template missing, failed, or rendered an invalid Dockerfile
	ExitVerificationFailed  = 4 // A referenced image is missing from its registry
)

// NewApp creates the CLI application
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "keelson",
		Usage:   "Generate Dockerfiles for application source trees",
		Version: version.Version(),
		Description: `keelson detects the platforms an application is written for (node,
python, dotnet, php), picks the build and runtime images that can build
and run it, and renders a Dockerfile.

Examples:
  keelson dockerfile .
  keelson dockerfile --platform python --platform-version 3.7 -o Dockerfile src/
  keelson detect --format json .`,
		Commands: []*cli.Command{
			dockerfileCommand(),
			detectCommand(),
			configCommand(),
			versionCommand(),
		},
	}
}

// Execute runs the CLI application
func Execute() error {
	return NewApp().Run(context.Background(), os.Args)
}

// exitWith reports err on the error writer and returns a cli exit error.
func exitWith(cmd *cli.Command, code int, err error) error {
	fmt.Fprintf(cmd.Root().ErrWriter, "Error: %v\n", err)
	return cli.Exit("", code)
}
