package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/data"
	"github.com/mchmarny/nnpu/pkg/logging"
)

const (
	appName = config.AppName

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	dbFlag = &urfave.StringFlag{
		Name:    "db",
		Usage:   "Path to the sqlite database file or a postgres:// URL",
		Sources: urfave.EnvVars("NNPU_DB"),
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	configFlag = &urfave.StringFlag{
		Name:  "config",
		Usage: "Path to the experiment config file (default: config.yaml in the app home dir)",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		cancel()
		os.Exit(1)
	}
}

type appConfig struct {
	DSN   string
	Home  string
	Debug bool
	DB    *sql.DB
}

type appConfigKey struct{}

func getConfig(ctx context.Context) (*appConfig, error) {
	c, ok := ctx.Value(appConfigKey{}).(*appConfig)
	if !ok || c == nil {
		return nil, errors.New("app config not initialized")
	}
	return c, nil
}

func newApp() *urfave.Command {
	var cfg *appConfig
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Train and compare PU-learning risk estimators, estimate class priors and adjust thresholds",
		Flags: fresh(
			debugFlag,
			dbFlag,
			formatFlag,
		),
		Commands: []*urfave.Command{
			newTrainCmd(),
			newSweepCmd(),
			newRiskCmd(),
			newPriorCmd(),
			newThresholdCmd(),
			newHistoryCmd(),
			newConfigCmd(),
			newTokenCmd(),
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			if cmd.Bool(debugFlag.Name) {
				logging.SetDefaultCLILogger("debug")
			}

			f := cmd.String(formatFlag.Name)
			if f != formatJSON && f != formatYAML && f != "yml" {
				return ctx, errors.Errorf("unsupported output format: %s", f)
			}

			home := getHomeDir()
			dsn := cmd.String(dbFlag.Name)
			if dsn == "" {
				dsn = filepath.Join(home, data.DataFileName)
			}

			if err := data.Init(dsn); err != nil {
				return ctx, errors.Wrap(err, "initializing database")
			}

			db, err := data.GetDB(dsn)
			if err != nil {
				return ctx, errors.Wrap(err, "opening database")
			}

			cfg = &appConfig{
				DSN:   dsn,
				Home:  home,
				Debug: cmd.Bool(debugFlag.Name),
				DB:    db,
			}
			return context.WithValue(ctx, appConfigKey{}, cfg), nil
		},
		After: func(_ context.Context, _ *urfave.Command) error {
			if cfg != nil && cfg.DB != nil {
				return cfg.DB.Close()
			}
			return nil
		},
	}
}

// fresh copies flag definitions so every command tree parses into its own
// flag state.
func fresh(flags ...urfave.Flag) []urfave.Flag {
	out := make([]urfave.Flag, 0, len(flags))
	for _, f := range flags {
		switch v := f.(type) {
		case *urfave.StringFlag:
			c := *v
			out = append(out, &c)
		case *urfave.BoolFlag:
			c := *v
			out = append(out, &c)
		case *urfave.IntFlag:
			c := *v
			out = append(out, &c)
		case *urfave.FloatFlag:
			c := *v
			out = append(out, &c)
		case *urfave.StringSliceFlag:
			c := *v
			out = append(out, &c)
		case *urfave.IntSliceFlag:
			c := *v
			out = append(out, &c)
		case *urfave.FloatSliceFlag:
			c := *v
			out = append(out, &c)
		default:
			out = append(out, f)
		}
	}
	return out
}

func getHomeDir() string {
	dir, created, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	if created {
		slog.Debug("created home dir", "path", dir)
	}
	return dir
}

// loadConfig reads the --config file, or the config in the app home dir.
func loadConfig(ctx context.Context, cmd *urfave.Command) (*config.Config, error) {
	if p := cmd.String(configFlag.Name); p != "" {
		return config.Read(p)
	}
	app, err := getConfig(ctx)
	if err != nil {
		return nil, err
	}
	return config.ReadOrCreate(app.Home)
}

func encode(cmd *urfave.Command, v any) error {
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	return encodeTo(w, cmd.Root().String(formatFlag.Name), v)
}

func encodeTo(w io.Writer, format string, v any) error {
	if format == formatYAML || format == "yml" {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
