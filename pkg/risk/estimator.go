package risk

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
)

const (
	defaultGamma = 1.0
	minCount     = 1.0
)

// Estimator computes a scalar training loss from model scores and PU labels.
type Estimator interface {
	Name() string
	Compute(scores []float64, labels []Label) (float64, error)
	Gradient(scores []float64, labels []Label) ([]float64, error)
}

// Config parametrizes the sigmoid-surrogate estimators.
type Config struct {
	// Prior is the class prior, must be in (0, 1).
	Prior float64
	// Surrogate defaults to Sigmoid.
	Surrogate Surrogate
	Variant   Variant
	// Beta is the slack below zero tolerated before the non-negative correction kicks in.
	Beta float64
	// Gamma scales the negative risk when the correction is applied. Defaults to 1.
	Gamma float64
}

func validatePrior(prior float64) error {
	if math.IsNaN(prior) || prior <= 0 || prior >= 1 {
		return errors.Wrapf(ErrConfiguration, "class prior must be in (0, 1), got %v", prior)
	}
	return nil
}

func validateSlack(beta, gamma float64) error {
	if math.IsNaN(beta) || beta < 0 {
		return errors.Wrapf(ErrConfiguration, "beta must be non-negative, got %v", beta)
	}
	if math.IsNaN(gamma) || gamma <= 0 {
		return errors.Wrapf(ErrConfiguration, "gamma must be positive, got %v", gamma)
	}
	return nil
}

// Decomposition holds the sub-terms of one risk computation.
type Decomposition struct {
	Labeled    float64 `json:"labeled" yaml:"labeled"`
	WholeCC    float64 `json:"whole_cc" yaml:"whole_cc"`
	WholeSS    float64 `json:"whole_ss" yaml:"whole_ss"`
	Correction float64 `json:"scar_correction" yaml:"scar_correction"`
	Loss       float64 `json:"loss" yaml:"loss"`

	Positives  int  `json:"positives" yaml:"positives"`
	Unlabeled  int  `json:"unlabeled" yaml:"unlabeled"`
	Degenerate bool `json:"degenerate,omitempty" yaml:"degenerate,omitempty"`
}

// Negative returns the uncorrected negative risk for the given mode.
func (d Decomposition) Negative(m Mode) float64 {
	if m == SingleSample {
		return d.WholeSS - d.Correction
	}
	return d.WholeCC - d.Correction
}

// Option configures a PU estimator.
type Option func(*PU)

// WithRecorder attaches a caller-owned sink receiving every decomposition.
func WithRecorder(r Recorder) Option {
	return func(p *PU) {
		p.recorder = r
	}
}

// PU is the nnPU/uPU risk estimator in its closed-form or single-sample form.
type PU struct {
	prior     float64
	beta      float64
	gamma     float64
	surrogate Surrogate
	variant   Variant
	recorder  Recorder
}

// New validates cfg and returns an estimator.
func New(cfg Config, opts ...Option) (*PU, error) {
	if err := validatePrior(cfg.Prior); err != nil {
		return nil, err
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = defaultGamma
	}
	if err := validateSlack(cfg.Beta, cfg.Gamma); err != nil {
		return nil, err
	}
	if _, ok := variantNames[cfg.Variant]; !ok {
		return nil, errors.Wrapf(ErrConfiguration, "unknown variant: %+v", cfg.Variant)
	}
	if cfg.Surrogate == nil {
		cfg.Surrogate = Sigmoid{}
	}

	p := &PU{
		prior:     cfg.Prior,
		beta:      cfg.Beta,
		gamma:     cfg.Gamma,
		surrogate: cfg.Surrogate,
		variant:   cfg.Variant,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *PU) Name() string {
	return p.variant.String()
}

func (p *PU) Prior() float64 {
	return p.prior
}

// Recorder returns the attached sink, nil when none.
func (p *PU) Recorder() Recorder {
	return p.recorder
}

// Compute returns the loss for one batch.
func (p *PU) Compute(scores []float64, labels []Label) (float64, error) {
	d, err := p.Decompose(scores, labels)
	if err != nil {
		return 0, err
	}
	return d.Loss, nil
}

// Decompose computes every risk term for one batch and records them.
func (p *PU) Decompose(scores []float64, labels []Label) (Decomposition, error) {
	if err := validateInput(scores, labels); err != nil {
		return Decomposition{}, err
	}

	var sumPos, sumPosNeg, sumUnlNeg, sumNeg float64
	var pos, unl int
	for i, s := range scores {
		yn := p.surrogate.Loss(-s)
		sumNeg += yn
		if labels[i] == Positive {
			pos++
			sumPos += p.surrogate.Loss(s)
			sumPosNeg += yn
		} else {
			unl++
			sumUnlNeg += yn
		}
	}

	nP := math.Max(minCount, float64(pos))
	nU := math.Max(minCount, float64(unl))
	n := nP + nU

	d := Decomposition{
		Labeled:    p.prior * sumPos / nP,
		WholeCC:    sumUnlNeg / nU,
		WholeSS:    sumNeg / n,
		Correction: p.prior * sumPosNeg / nP,
		Positives:  pos,
		Unlabeled:  unl,
		Degenerate: pos == 0 || unl == 0,
	}

	neg := d.Negative(p.variant.Mode)
	if p.corrected(neg) {
		d.Loss = -p.gamma * neg
	} else {
		d.Loss = d.Labeled + neg
	}

	if d.Degenerate {
		slog.Debug("degenerate batch", "estimator", p.Name(), "positives", pos, "unlabeled", unl)
	}
	if p.recorder != nil {
		p.recorder.Record(d)
	}
	return d, nil
}

func (p *PU) corrected(neg float64) bool {
	return p.variant.Correction == NonNegative && neg < -p.beta
}

// Gradient returns d loss / d score for every example, following the same
// branch Compute takes. It does not record history.
func (p *PU) Gradient(scores []float64, labels []Label) ([]float64, error) {
	if err := validateInput(scores, labels); err != nil {
		return nil, err
	}

	var sumPosNeg, sumUnlNeg, sumNeg float64
	var pos, unl int
	for i, s := range scores {
		yn := p.surrogate.Loss(-s)
		sumNeg += yn
		if labels[i] == Positive {
			pos++
			sumPosNeg += yn
		} else {
			unl++
			sumUnlNeg += yn
		}
	}
	nP := math.Max(minCount, float64(pos))
	nU := math.Max(minCount, float64(unl))
	n := nP + nU

	var neg float64
	if p.variant.Mode == SingleSample {
		neg = sumNeg/n - p.prior*sumPosNeg/nP
	} else {
		neg = sumUnlNeg/nU - p.prior*sumPosNeg/nP
	}
	corrected := p.corrected(neg)

	grad := make([]float64, len(scores))
	for i, s := range scores {
		// d l(-s) / ds
		dn := -p.surrogate.Deriv(-s)

		var gNeg float64
		if p.variant.Mode == SingleSample {
			gNeg = dn / n
		} else if labels[i] == Unlabeled {
			gNeg = dn / nU
		}
		if labels[i] == Positive {
			gNeg -= p.prior * dn / nP
		}

		if corrected {
			grad[i] = -p.gamma * gNeg
			continue
		}
		grad[i] = gNeg
		if labels[i] == Positive {
			grad[i] += p.prior * p.surrogate.Deriv(s) / nP
		}
	}
	return grad, nil
}
