package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/MimeLyc/yt-summary/internal/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "manage the YAML settings file",
		Subcommands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "write the effective settings to a file usable as SUMMARY_CONFIG_FILE",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
				},
				Action: configInitAction,
			},
		},
	}
}

func configInitAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: yt-summary config init <path>", 2)
	}
	path := c.Args().First()
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("%s already exists, use --force to overwrite", path), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := config.WriteFileSettings(path, config.FileSettingsFrom(cfg)); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote settings to %s\n", path)
	return nil
}
