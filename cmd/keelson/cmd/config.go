package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/wharflab/keelson/internal/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect keelson configuration",
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "Print the configuration JSON schema",
				Action: func(_ context.Context, cmd *cli.Command) error {
					data, err := config.SchemaJSON()
					if err != nil {
						return exitWith(cmd, ExitConfigError, err)
					}
					fmt.Fprintln(cmd.Root().Writer, string(data))
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Print the effective configuration for a source directory",
				ArgsUsage: "[SOURCE_DIR]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to config file (default: auto-discover)",
						Sources: cli.EnvVars("KEELSON_CONFIG"),
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					sourceDir, err := sourceDirArg(cmd)
					if err != nil {
						return exitWith(cmd, ExitConfigError, err)
					}
					cfg, err := config.LoadWithOverrides(sourceDir, cmd.String("config"), nil)
					if err != nil {
						return exitWith(cmd, ExitConfigError, err)
					}
					data, err := cfg.MarshalTOML()
					if err != nil {
						return exitWith(cmd, ExitConfigError, err)
					}
					if cfg.ConfigFile != "" {
						fmt.Fprintf(cmd.Root().Writer, "# loaded from %s\n", cfg.ConfigFile)
					}
					_, err = cmd.Root().Writer.Write(data)
					return err
				},
			},
		},
	}
}
