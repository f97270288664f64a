package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/data"
	"github.com/mchmarny/nnpu/pkg/experiment"
	"github.com/mchmarny/nnpu/pkg/risk"
)

var (
	estimatorFlag = &urfave.StringFlag{
		Name:  "estimator",
		Usage: fmt.Sprintf("Risk estimator [%s]", strings.Join(risk.Variants(), ", ")),
	}

	labelFrequencyFlag = &urfave.FloatFlag{
		Name:  "label-frequency",
		Usage: "Fraction of positives that are labeled, in (0, 1]",
	}

	epochsFlag = &urfave.IntFlag{
		Name:  "epochs",
		Usage: "Number of training epochs",
	}

	seedFlag = &urfave.IntFlag{
		Name:  "seed",
		Usage: "Random seed",
	}

	outputDirFlag = &urfave.StringFlag{
		Name:  "output",
		Usage: "Directory to write CSV and JSON artifacts into (optional)",
	}

	noSaveFlag = &urfave.BoolFlag{
		Name:  "no-save",
		Usage: "Skip storing the run in the database",
	}
)

func newTrainCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "train",
		Aliases: []string{"t"},
		Usage:   "Train a linear scorer with a PU risk estimator",
		Action:  cmdTrain,
		Flags: fresh(
			configFlag,
			estimatorFlag,
			labelFrequencyFlag,
			epochsFlag,
			seedFlag,
			outputDirFlag,
			noSaveFlag,
		),
	}
}

// RunResult is the output of a stored training run.
type RunResult struct {
	ID     int64              `json:"id,omitempty" yaml:"id,omitempty"`
	Report *experiment.Report `json:"report" yaml:"report"`
}

// applyOverrides copies explicitly set flags onto the config.
func applyOverrides(cmd *urfave.Command, c *config.Config) {
	if cmd.IsSet(estimatorFlag.Name) {
		c.Estimator = cmd.String(estimatorFlag.Name)
	}
	if cmd.IsSet(labelFrequencyFlag.Name) {
		c.LabelFrequency = cmd.Float(labelFrequencyFlag.Name)
	}
	if cmd.IsSet(epochsFlag.Name) {
		c.Epochs = int(cmd.Int(epochsFlag.Name))
	}
	if cmd.IsSet(seedFlag.Name) {
		c.Seed = uint64(cmd.Int(seedFlag.Name))
	}
	if cmd.IsSet(outputDirFlag.Name) {
		c.OutputDir = cmd.String(outputDirFlag.Name)
	}
}

func cmdTrain(ctx context.Context, cmd *urfave.Command) error {
	app, err := getConfig(ctx)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	applyOverrides(cmd, cfg)

	r, err := experiment.New(cfg)
	if err != nil {
		return err
	}
	slog.Info("training", "estimator", cfg.Estimator, "prior", r.Prior(), "epochs", cfg.Epochs)

	rep, err := r.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.OutputDir != "" {
		if err := experiment.WriteArtifacts(cfg.OutputDir, rep); err != nil {
			return err
		}
		slog.Info("artifacts written", "dir", cfg.OutputDir)
	}

	res := &RunResult{Report: rep}
	if !cmd.Bool(noSaveFlag.Name) {
		if res.ID, err = data.SaveReport(app.DB, rep); err != nil {
			return err
		}
	}
	return encode(cmd, res)
}
