package prior

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

const MeanSolverName = "mean"

// MeanSolver averages sigmoid(score) over the unlabeled scores. Scorers
// trained with a PU risk estimate P(y=1|x), whose mean over the marginal is
// the class prior. Under a prior shift the estimate leans toward the training
// prior.
//
// With Labeled set the scorer is instead taken to separate labeled from
// unlabeled examples, and the mean is rescaled by the mean over labeled
// positives, the label frequency c (Elkan and Noto). Applying the rescaling
// to a PU-trained scorer inflates the estimate.
type MeanSolver struct {
	Labeled bool
}

func (MeanSolver) Name() string {
	return MeanSolverName
}

func (m MeanSolver) EstimatePrior(scores []float64, sizes Partition) (float64, error) {
	if err := checkSizes(scores, sizes); err != nil {
		return 0, err
	}
	pos, unl := sizes.Split(scores)

	p := stat.Mean(probabilities(unl), nil)
	if !m.Labeled {
		return clip(p), nil
	}

	c := stat.Mean(probabilities(pos), nil)
	if c <= 0 {
		return 0, errors.Wrap(ErrDegenerate, "labeled positives have zero mean probability")
	}
	return clip(p / c), nil
}

func probabilities(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = 1 / (1 + math.Exp(-s))
	}
	return out
}
