package cli

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/data"
	"github.com/mchmarny/nnpu/pkg/experiment"
	"github.com/mchmarny/nnpu/pkg/risk"
)

var (
	estimatorsFlag = &urfave.StringSliceFlag{
		Name:  "estimators",
		Usage: "Estimators to compare (default: all)",
	}

	labelFrequenciesFlag = &urfave.FloatSliceFlag{
		Name:  "label-frequencies",
		Usage: "Label frequencies to sweep (default: the config value)",
	}

	seedsFlag = &urfave.IntSliceFlag{
		Name:  "seeds",
		Usage: "Seeds to repeat every run with (default: the config value)",
	}

	parallelFlag = &urfave.IntFlag{
		Name:  "parallel",
		Usage: "Maximum concurrent runs (default: number of CPUs)",
	}
)

func newSweepCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "sweep",
		Aliases: []string{"s"},
		Usage:   "Run a grid of estimators, label frequencies and seeds concurrently",
		Action:  cmdSweep,
		Flags: fresh(
			configFlag,
			estimatorsFlag,
			labelFrequenciesFlag,
			seedsFlag,
			parallelFlag,
			epochsFlag,
			outputDirFlag,
			noSaveFlag,
		),
	}
}

// SweepResult is one row of a sweep.
type SweepResult struct {
	ID             int64   `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string  `json:"name" yaml:"name"`
	Estimator      string  `json:"estimator" yaml:"estimator"`
	LabelFrequency float64 `json:"label_frequency" yaml:"label_frequency"`
	Seed           uint64  `json:"seed" yaml:"seed"`
	TestAccuracy   float64 `json:"test_accuracy" yaml:"test_accuracy"`
	TestF1         float64 `json:"test_f1" yaml:"test_f1"`
}

func cmdSweep(ctx context.Context, cmd *urfave.Command) error {
	app, err := getConfig(ctx)
	if err != nil {
		return err
	}
	base, err := loadConfig(ctx, cmd)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	applyOverrides(cmd, base)

	estimators := cmd.StringSlice(estimatorsFlag.Name)
	if len(estimators) == 0 {
		estimators = risk.Variants()
	}
	var seeds []uint64
	for _, s := range cmd.IntSlice(seedsFlag.Name) {
		seeds = append(seeds, uint64(s))
	}

	var cfgs []*config.Config
	for _, e := range estimators {
		b := *base
		b.Estimator = e
		cfgs = append(cfgs, experiment.Plan(&b, cmd.FloatSlice(labelFrequenciesFlag.Name), seeds)...)
	}
	slog.Info("sweep", "runs", len(cfgs))

	reports, err := experiment.Sweep(ctx, cfgs, int(cmd.Int(parallelFlag.Name)))
	if err != nil {
		return err
	}

	out := make([]*SweepResult, 0, len(reports))
	for _, r := range reports {
		res := &SweepResult{
			Name:           r.Name,
			Estimator:      r.Estimator,
			LabelFrequency: r.LabelFrequency,
			Seed:           r.Seed,
		}
		if f := r.Final(); f != nil && f.Test != nil {
			res.TestAccuracy = f.Test.Accuracy
			res.TestF1 = f.Test.F1
		}
		if !cmd.Bool(noSaveFlag.Name) {
			if res.ID, err = data.SaveReport(app.DB, r); err != nil {
				return err
			}
		}
		out = append(out, res)
	}
	return encode(cmd, out)
}
