package threshold

import (
	"math"

	"github.com/mchmarny/nnpu/pkg/metrics"
	"github.com/pkg/errors"
)

// MaxCandidates bounds the number of compared thresholds: the true prior and
// up to three estimates.
const MaxCandidates = 4

var (
	// ErrInvalidPrior is returned for priors outside (0, 1).
	ErrInvalidPrior = errors.New("prior must be in (0, 1)")

	// ErrInvalidThreshold is returned for odds thresholds that are not positive
	// and finite.
	ErrInvalidThreshold = errors.New("threshold must be positive and finite")

	// ErrTooManyCandidates is returned when more than MaxCandidates are compared.
	ErrTooManyCandidates = errors.New("too many threshold candidates")
)

func validPrior(p float64) bool {
	return !math.IsNaN(p) && p > 0 && p < 1
}

// Compute returns the odds-ratio cutoff for a classifier trained under
// trainPrior and applied to data with newPrior:
//
//	tau = (trainPrior / (1 - trainPrior)) * ((1 - newPrior) / newPrior)
func Compute(trainPrior, newPrior float64) (float64, error) {
	if !validPrior(trainPrior) {
		return 0, errors.Wrapf(ErrInvalidPrior, "train prior: %v", trainPrior)
	}
	if !validPrior(newPrior) {
		return 0, errors.Wrapf(ErrInvalidPrior, "new prior: %v", newPrior)
	}
	if trainPrior == newPrior {
		return 1, nil
	}
	return (trainPrior / (1 - trainPrior)) * ((1 - newPrior) / newPrior), nil
}

// Cutoff converts tau to the equivalent cutoff on the raw score,
// logit(tau / (1 + tau)), which is ln(tau).
func Cutoff(tau float64) float64 {
	return math.Log(tau)
}

// Classify predicts +1 when sigmoid(s) / (1 - sigmoid(s)) >= tau, -1 otherwise.
// The odds of a logit s are exp(s), so the rule is evaluated as s >= ln(tau).
// tau must be positive and finite.
func Classify(scores []float64, tau float64) ([]int, error) {
	if math.IsNaN(tau) || math.IsInf(tau, 0) || tau <= 0 {
		return nil, errors.Wrapf(ErrInvalidThreshold, "tau: %v", tau)
	}
	c := Cutoff(tau)
	out := make([]int, len(scores))
	for i, s := range scores {
		if s >= c {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out, nil
}

// Candidate is a named estimate of the prior of new data.
type Candidate struct {
	Name  string  `json:"name" yaml:"name"`
	Prior float64 `json:"prior" yaml:"prior"`
}

// Outcome is the result of classifying with one candidate's threshold.
type Outcome struct {
	Candidate
	Tau         float64         `json:"tau" yaml:"tau"`
	Predictions []int           `json:"-" yaml:"-"`
	Metrics     *metrics.Values `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Compare classifies scores with the threshold derived from every candidate.
// When truth is not nil, metrics are computed against it.
func Compare(trainPrior float64, candidates []Candidate, scores []float64, truth []int) ([]Outcome, error) {
	if len(candidates) > MaxCandidates {
		return nil, errors.Wrapf(ErrTooManyCandidates, "got %d, max %d", len(candidates), MaxCandidates)
	}
	if truth != nil && len(truth) != len(scores) {
		return nil, errors.Errorf("scores (%d) and truth (%d) differ in length", len(scores), len(truth))
	}

	out := make([]Outcome, 0, len(candidates))
	for _, c := range candidates {
		tau, err := Compute(trainPrior, c.Prior)
		if err != nil {
			return nil, errors.Wrapf(err, "candidate %s", c.Name)
		}
		o := Outcome{Candidate: c, Tau: tau}
		if o.Predictions, err = Classify(scores, tau); err != nil {
			return nil, errors.Wrapf(err, "candidate %s", c.Name)
		}
		if truth != nil {
			if o.Metrics, err = metrics.Compute(truth, o.Predictions); err != nil {
				return nil, errors.Wrapf(err, "candidate %s", c.Name)
			}
		}
		out = append(out, o)
	}
	return out, nil
}
