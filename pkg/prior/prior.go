package prior

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Epsilon keeps solver output inside the open interval (0, 1).
	Epsilon = 1e-3
)

var (
	// ErrInvalidInput is returned for empty or non-finite score sets.
	ErrInvalidInput = errors.New("invalid prior estimation input")

	// ErrPriorOutOfRange is returned when a solver yields a prior outside (0, 1).
	ErrPriorOutOfRange = errors.New("estimated prior out of range")

	// ErrDegenerate is returned when the scores carry no usable signal.
	ErrDegenerate = errors.New("degenerate score distribution")
)

// Partition describes how a concatenated score slice splits: the first
// Positive scores come from labeled positives, the remaining Unlabeled from
// the mixture.
type Partition struct {
	Positive  int `json:"positive" yaml:"positive"`
	Unlabeled int `json:"unlabeled" yaml:"unlabeled"`
}

// Split returns the two views of scores.
func (p Partition) Split(scores []float64) (pos, unl []float64) {
	return scores[:p.Positive], scores[p.Positive : p.Positive+p.Unlabeled]
}

// Solver estimates the fraction of positives in the unlabeled part.
type Solver interface {
	Name() string
	EstimatePrior(scores []float64, sizes Partition) (float64, error)
}

// Estimator prepares scores for a Solver and checks its result.
type Estimator struct {
	Solver Solver
}

// New returns an estimator backed by s.
func New(s Solver) *Estimator {
	return &Estimator{Solver: s}
}

// Estimate returns the class prior of the population unlabeled was drawn from,
// given model scores of labeled positives.
func (e *Estimator) Estimate(positive, unlabeled []float64) (float64, error) {
	if e.Solver == nil {
		return 0, errors.New("prior solver required")
	}
	if len(positive) == 0 || len(unlabeled) == 0 {
		return 0, errors.Wrapf(ErrInvalidInput, "positive (%d) and unlabeled (%d) scores required", len(positive), len(unlabeled))
	}

	scores := make([]float64, 0, len(positive)+len(unlabeled))
	scores = append(scores, positive...)
	scores = append(scores, unlabeled...)
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return 0, errors.Wrapf(ErrInvalidInput, "score at index %d is not finite", i)
		}
	}

	p, err := e.Solver.EstimatePrior(scores, Partition{Positive: len(positive), Unlabeled: len(unlabeled)})
	if err != nil {
		return 0, errors.Wrapf(err, "%s solver", e.Solver.Name())
	}
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, errors.Wrapf(ErrPriorOutOfRange, "%s solver returned %v", e.Solver.Name(), p)
	}
	return p, nil
}

// Lookup returns a default-configured solver by name: ratio, mean or roc.
func Lookup(name string) (Solver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RatioSolverName:
		return &RatioSolver{}, nil
	case MeanSolverName:
		return &MeanSolver{}, nil
	case ROCSolverName:
		return &ROCSolver{}, nil
	default:
		return nil, errors.Errorf("unknown prior solver: %q", name)
	}
}

// Names lists the solvers known to Lookup.
func Names() []string {
	return []string{RatioSolverName, MeanSolverName, ROCSolverName}
}

func clip(p float64) float64 {
	return math.Min(1-Epsilon, math.Max(Epsilon, p))
}

func checkSizes(scores []float64, sizes Partition) error {
	if sizes.Positive <= 0 || sizes.Unlabeled <= 0 || sizes.Positive+sizes.Unlabeled != len(scores) {
		return errors.Wrapf(ErrInvalidInput, "partition %+v does not match %d scores", sizes, len(scores))
	}
	return nil
}
