package cmd

import (
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wharflab/keelson/internal/registry"
	"github.com/wharflab/keelson/internal/reporter"
	"github.com/wharflab/keelson/internal/selection"
)

// detectionFlags are shared by every command that runs platform detection.
func detectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file (default: auto-discover)",
			Sources: cli.EnvVars("KEELSON_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "platform",
			Usage:   "Build for this platform only (node, python, dotnet, php)",
			Sources: cli.EnvVars("KEELSON_PLATFORM"),
		},
		&cli.StringFlag{
			Name:    "platform-version",
			Usage:   "Version of --platform; skips manifest inspection",
			Sources: cli.EnvVars("KEELSON_PLATFORM_VERSION"),
		},
		&cli.BoolFlag{
			Name:  "disable-multi-platform-build",
			Usage: "Stop detection at the first (primary) platform",
		},
		&cli.StringFlag{
			Name:  "primary",
			Usage: "Rule choosing the runtime platform: " + strings.Join(selection.PrimaryRules(), ", "),
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Glob pattern hidden from detection (can be repeated)",
		},
		&cli.StringFlag{
			Name:  "verify-images",
			Usage: "Check that the selected images exist: auto (CI only), on, off",
		},
		&cli.StringFlag{
			Name:  "target-platform",
			Usage: "OS/arch the images must support when verifying (default: " + registry.DefaultPlatform + ")",
		},
		&cli.BoolFlag{
			Name:  "insecure-registry",
			Usage: "Allow plain HTTP registries when verifying",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: error, warn, info, debug, trace",
		},
	}
}

func dockerfileFlags() []cli.Flag {
	return append(detectionFlags(),
		&cli.StringFlag{
			Name:  "template",
			Usage: "Built-in template id: dockerfile, dockerfile-runtime",
		},
		&cli.StringFlag{
			Name:  "template-file",
			Usage: "Custom template file (text/template with sprig functions)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output path: stdout, stderr, or file path",
			Value:   "stdout",
		},
	)
}

func detectFlags() []cli.Flag {
	return append(detectionFlags(),
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: " + strings.Join(reporter.Formats(), ", "),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output path: stdout, stderr, or file path",
		},
		&cli.BoolFlag{
			Name:    "no-color",
			Usage:   "Disable colored output",
			Sources: cli.EnvVars("NO_COLOR"),
		},
	)
}

// flagOverrides maps explicitly set flags onto config keys. Flags left at
// their defaults do not override the config file or environment.
func flagOverrides(cmd *cli.Command) map[string]any {
	overrides := make(map[string]any)
	set := func(section, key string, value any) {
		m, ok := overrides[section].(map[string]any)
		if !ok {
			m = make(map[string]any)
			overrides[section] = m
		}
		m[key] = value
	}

	if cmd.IsSet("primary") {
		set("selection", "primary", cmd.String("primary"))
	}
	if cmd.IsSet("disable-multi-platform-build") {
		set("detection", "disable-multi-platform-build", cmd.Bool("disable-multi-platform-build"))
	}
	if cmd.IsSet("exclude") {
		set("detection", "exclude", cmd.StringSlice("exclude"))
	}
	if cmd.IsSet("verify-images") {
		set("registry", "verify", cmd.String("verify-images"))
	}
	if cmd.IsSet("target-platform") {
		set("registry", "platform", cmd.String("target-platform"))
	}
	if cmd.IsSet("insecure-registry") {
		set("registry", "insecure", cmd.Bool("insecure-registry"))
	}
	if cmd.IsSet("log-level") {
		set("log", "level", cmd.String("log-level"))
	}
	if cmd.IsSet("template") {
		set("template", "id", cmd.String("template"))
	}
	if cmd.IsSet("template-file") {
		set("template", "path", cmd.String("template-file"))
	}
	if cmd.IsSet("format") {
		set("output", "format", cmd.String("format"))
	}
	// the dockerfile command's --output names the Dockerfile, not the report
	if cmd.Name == "detect" && cmd.IsSet("output") {
		set("output", "path", cmd.String("output"))
	}
	return overrides
}
