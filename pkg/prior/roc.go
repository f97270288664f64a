package prior

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

const (
	ROCSolverName = "roc"

	defaultMinTail = 0.1
)

// ROCSolver bounds the mixture proportion by the smallest ratio of upper tail
// masses, U(s > t) / P(s > t), over cutoffs t where the positive tail still
// holds at least MinTail of the positives.
type ROCSolver struct {
	MinTail float64
}

func (r *ROCSolver) Name() string {
	return ROCSolverName
}

func (r *ROCSolver) EstimatePrior(scores []float64, sizes Partition) (float64, error) {
	if err := checkSizes(scores, sizes); err != nil {
		return 0, err
	}
	minTail := r.MinTail
	if minTail <= 0 || minTail > 1 {
		minTail = defaultMinTail
	}

	y := append([]float64(nil), scores...)
	classes := make([]bool, len(y))
	for i := range sizes.Positive {
		classes[i] = true
	}
	stat.SortWeightedLabeled(y, classes, nil)

	// tpr is the positive mass above each cutoff, fpr the unlabeled mass.
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)

	best := math.Inf(1)
	for i := range tpr {
		if tpr[i] < minTail {
			continue
		}
		best = math.Min(best, fpr[i]/tpr[i])
	}
	if math.IsInf(best, 1) {
		return 0, errors.Wrap(ErrDegenerate, "no cutoff with enough positive mass")
	}
	return clip(best), nil
}
