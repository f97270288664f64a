package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/experiment"
	"github.com/mchmarny/nnpu/pkg/prior"
)

var (
	solversFlag = &urfave.StringSliceFlag{
		Name:  "solver",
		Usage: fmt.Sprintf("Prior solvers to run [%s] (default: all)", strings.Join(prior.Names(), ", ")),
	}
)

func newPriorCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "prior",
		Aliases: []string{"p"},
		Usage:   "Estimate the class prior of unlabeled scores from labeled positive scores",
		Action:  cmdPrior,
		Flags: fresh(
			scoresFlag,
			solversFlag,
		),
	}
}

// PriorResult is the output of the prior command.
type PriorResult struct {
	Positive  int                   `json:"positive" yaml:"positive"`
	Unlabeled int                   `json:"unlabeled" yaml:"unlabeled"`
	Estimates []experiment.Estimate `json:"estimates" yaml:"estimates"`
}

func cmdPrior(_ context.Context, cmd *urfave.Command) error {
	scores, classes, err := loadScores(cmd.String(scoresFlag.Name))
	if err != nil {
		return err
	}

	var pos, unl []float64
	for i, s := range scores {
		if classes[i] == 1 {
			pos = append(pos, s)
		} else {
			unl = append(unl, s)
		}
	}

	names := cmd.StringSlice(solversFlag.Name)
	if len(names) == 0 {
		names = prior.Names()
	}

	res := &PriorResult{Positive: len(pos), Unlabeled: len(unl)}
	for _, n := range names {
		s, err := prior.Lookup(n)
		if err != nil {
			return err
		}
		e := experiment.Estimate{Solver: s.Name()}
		if e.Prior, err = prior.New(s).Estimate(pos, unl); err != nil {
			slog.Warn("prior estimation failed", "solver", n, "error", err)
			e.Error = err.Error()
		}
		res.Estimates = append(res.Estimates, e)
	}
	return encode(cmd, res)
}
