package cli

import (
	"context"

	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/config"
)

var (
	configDirFlag = &urfave.StringFlag{
		Name:  "dir",
		Usage: "Directory to write config.yaml into (default: the app home dir)",
	}
)

func newConfigCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Manage the experiment config",
		Commands: []*urfave.Command{
			{
				Name:   "show",
				Usage:  "Print the effective config",
				Action: cmdConfigShow,
				Flags:  fresh(configFlag),
			},
			{
				Name:   "reset",
				Usage:  "Write the default config",
				Action: cmdConfigReset,
				Flags:  fresh(configDirFlag),
			},
		},
	}
}

func cmdConfigShow(ctx context.Context, cmd *urfave.Command) error {
	c, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "config is not runnable")
	}
	return encode(cmd, c)
}

func cmdConfigReset(ctx context.Context, cmd *urfave.Command) error {
	dir := cmd.String(configDirFlag.Name)
	if dir == "" {
		app, err := getConfig(ctx)
		if err != nil {
			return err
		}
		dir = app.Home
	}
	c := config.Default()
	if err := config.Save(dir, c); err != nil {
		return err
	}
	return encode(cmd, c)
}
