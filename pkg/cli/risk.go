package cli

import (
	"context"

	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/dataset"
	"github.com/mchmarny/nnpu/pkg/experiment"
	"github.com/mchmarny/nnpu/pkg/risk"
)

var (
	scoresFlag = &urfave.StringFlag{
		Name:     "scores",
		Usage:    "CSV file of label,score rows (label 1 is positive, anything else unlabeled or negative)",
		Required: true,
	}

	priorFlag = &urfave.FloatFlag{
		Name:     "prior",
		Usage:    "Class prior in (0, 1)",
		Required: true,
	}

	betaFlag = &urfave.FloatFlag{
		Name:  "beta",
		Usage: "Slack below zero tolerated before the non-negative correction",
	}

	gammaFlag = &urfave.FloatFlag{
		Name:  "gamma",
		Usage: "Scale of the negative risk when corrected",
		Value: 1,
	}

	surrogateFlag = &urfave.StringFlag{
		Name:  "surrogate",
		Usage: "Surrogate loss [sigmoid, logistic]",
		Value: config.SurrogateSigmoid,
	}
)

func newRiskCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "risk",
		Aliases: []string{"r"},
		Usage:   "Compute the PU risk of a labeled score file",
		Action:  cmdRisk,
		Flags: fresh(
			scoresFlag,
			priorFlag,
			&urfave.StringFlag{
				Name:  estimatorFlag.Name,
				Usage: estimatorFlag.Usage,
				Value: risk.NNPUcc.String(),
			},
			surrogateFlag,
			betaFlag,
			gammaFlag,
		),
	}
}

// RiskResult is the output of the risk command.
type RiskResult struct {
	Estimator     string              `json:"estimator" yaml:"estimator"`
	Prior         float64             `json:"prior" yaml:"prior"`
	Loss          float64             `json:"loss" yaml:"loss"`
	Decomposition *risk.Decomposition `json:"decomposition,omitempty" yaml:"decomposition,omitempty"`
	Terms         *risk.DRTerms       `json:"terms,omitempty" yaml:"terms,omitempty"`
}

// loadScores reads a label,score file.
func loadScores(path string) ([]float64, []int, error) {
	d, err := dataset.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if d.Dim() != 1 {
		return nil, nil, errors.Errorf("expected one score per row, got %d", d.Dim())
	}
	b := d.All()
	scores := make([]float64, len(b.Features))
	for i, f := range b.Features {
		scores[i] = f[0]
	}
	return scores, b.Classes, nil
}

func cmdRisk(_ context.Context, cmd *urfave.Command) error {
	scores, classes, err := loadScores(cmd.String(scoresFlag.Name))
	if err != nil {
		return err
	}
	labels, err := risk.LabelsFromInts(classes)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Estimator: cmd.String(estimatorFlag.Name),
		Surrogate: cmd.String(surrogateFlag.Name),
		Beta:      cmd.Float(betaFlag.Name),
		Gamma:     cmd.Float(gammaFlag.Name),
	}
	p := cmd.Float(priorFlag.Name)
	est, err := experiment.NewEstimator(cfg, p, nil)
	if err != nil {
		return err
	}

	res := &RiskResult{Estimator: est.Name(), Prior: p}
	switch e := est.(type) {
	case *risk.PU:
		d, err := e.Decompose(scores, labels)
		if err != nil {
			return err
		}
		res.Loss, res.Decomposition = d.Loss, &d
	case *risk.DRPU:
		t, err := e.Terms(scores, labels)
		if err != nil {
			return err
		}
		res.Loss, res.Terms = t.Loss, &t
	default:
		if res.Loss, err = est.Compute(scores, labels); err != nil {
			return err
		}
	}
	return encode(cmd, res)
}
