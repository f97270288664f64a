package cli

import (
	"context"

	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/metrics"
	"github.com/mchmarny/nnpu/pkg/threshold"
)

var (
	trainPriorFlag = &urfave.FloatFlag{
		Name:     "train-prior",
		Usage:    "Class prior of the training data",
		Required: true,
	}

	newPriorFlag = &urfave.FloatFlag{
		Name:     "new-prior",
		Usage:    "Class prior of the new data",
		Required: true,
	}
)

func newThresholdCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "threshold",
		Aliases: []string{"th"},
		Usage:   "Compute the odds threshold adjusting a classifier to a new class prior",
		Action:  cmdThreshold,
		Flags: fresh(
			trainPriorFlag,
			newPriorFlag,
			&urfave.StringFlag{
				Name:  scoresFlag.Name,
				Usage: "CSV file of class,score rows to classify and evaluate (optional)",
			},
		),
	}
}

// ThresholdResult is the output of the threshold command.
type ThresholdResult struct {
	TrainPrior float64 `json:"train_prior" yaml:"train_prior"`
	NewPrior   float64 `json:"new_prior" yaml:"new_prior"`
	Tau        float64 `json:"tau" yaml:"tau"`
	// Cutoff is the logit threshold equivalent to Tau.
	Cutoff   float64         `json:"cutoff" yaml:"cutoff"`
	Baseline *metrics.Values `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Adjusted *metrics.Values `json:"adjusted,omitempty" yaml:"adjusted,omitempty"`
}

func cmdThreshold(_ context.Context, cmd *urfave.Command) error {
	res := &ThresholdResult{
		TrainPrior: cmd.Float(trainPriorFlag.Name),
		NewPrior:   cmd.Float(newPriorFlag.Name),
	}

	var err error
	if res.Tau, err = threshold.Compute(res.TrainPrior, res.NewPrior); err != nil {
		return err
	}
	res.Cutoff = threshold.Cutoff(res.Tau)

	if p := cmd.String(scoresFlag.Name); p != "" {
		scores, classes, err := loadScores(p)
		if err != nil {
			return err
		}
		out, err := threshold.Compare(res.TrainPrior, []threshold.Candidate{
			{Name: "baseline", Prior: res.TrainPrior},
			{Name: "adjusted", Prior: res.NewPrior},
		}, scores, classes)
		if err != nil {
			return err
		}
		res.Baseline, res.Adjusted = out[0].Metrics, out[1].Metrics
	}
	return encode(cmd, res)
}
