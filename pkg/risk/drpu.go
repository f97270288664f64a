package risk

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
)

// Divergence is the convex function of a Bregman density-ratio fit along with
// its derivatives. DDF may be nil, it is then evaluated numerically.
type Divergence struct {
	F   func(x float64) float64
	DF  func(x float64) float64
	DDF func(x float64) float64
}

// SquaredDivergence is f(x) = (x-1)^2/2, the least-squares density-ratio fit.
func SquaredDivergence() Divergence {
	return Divergence{
		F:   func(x float64) float64 { return (x - 1) * (x - 1) / 2 },
		DF:  func(x float64) float64 { return x - 1 },
		DDF: func(float64) float64 { return 1 },
	}
}

// DRConfig parametrizes the density-ratio estimator.
type DRConfig struct {
	Prior float64
	// Alpha weights the positive correction. It is replaced by Prior whenever
	// Prior is set.
	Alpha      float64
	Divergence Divergence
	Beta       float64
	Gamma      float64
}

// DRTerms are the expectations of one DRPU computation, after NaN clamping.
type DRTerms struct {
	PP   float64 `json:"e_pp" yaml:"e_pp"`
	PN   float64 `json:"e_pn" yaml:"e_pn"`
	U    float64 `json:"e_u" yaml:"e_u"`
	N    float64 `json:"e_n" yaml:"e_n"`
	Loss float64 `json:"loss" yaml:"loss"`
}

// DRPU is the non-negative density-ratio PU risk.
type DRPU struct {
	alpha float64
	beta  float64
	gamma float64
	df    func(float64) float64
	ddf   func(float64) float64
	// dual is f*(x) = x*df(x) - f(x), centered is f*(x) - f*(0).
	dual     func(float64) float64
	centered func(float64) float64
	dual0    float64
}

// NewDRPU validates cfg and builds the dual functions once.
func NewDRPU(cfg DRConfig) (*DRPU, error) {
	if cfg.Prior != 0 {
		if err := validatePrior(cfg.Prior); err != nil {
			return nil, err
		}
		cfg.Alpha = cfg.Prior
	}
	if math.IsNaN(cfg.Alpha) || cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return nil, errors.Wrapf(ErrConfiguration, "alpha must be in (0, 1), got %v", cfg.Alpha)
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = defaultGamma
	}
	if err := validateSlack(cfg.Beta, cfg.Gamma); err != nil {
		return nil, err
	}

	div := cfg.Divergence
	if div.F == nil && div.DF == nil {
		div = SquaredDivergence()
	}
	if div.F == nil || div.DF == nil {
		return nil, errors.Wrap(ErrConfiguration, "divergence requires both f and its derivative")
	}
	if div.DDF == nil {
		df := div.DF
		div.DDF = func(x float64) float64 {
			return fd.Derivative(df, x, &fd.Settings{Formula: fd.Central})
		}
	}

	d := &DRPU{
		alpha: cfg.Alpha,
		beta:  cfg.Beta,
		gamma: cfg.Gamma,
		df:    div.DF,
		ddf:   div.DDF,
	}
	f, df := div.F, div.DF
	d.dual = func(x float64) float64 { return x*df(x) - f(x) }
	d.dual0 = d.dual(0)
	d.centered = func(x float64) float64 { return d.dual(x) - d.dual0 }
	return d, nil
}

func (d *DRPU) Name() string {
	return DRPUName
}

func (d *DRPU) Alpha() float64 {
	return d.alpha
}

// Compute returns the DRPU loss for one batch.
func (d *DRPU) Compute(scores []float64, labels []Label) (float64, error) {
	t, err := d.Terms(scores, labels)
	if err != nil {
		return 0, err
	}
	return t.Loss, nil
}

// Terms computes the expectations and the loss. Means over an empty partition
// are NaN and clamp to zero.
func (d *DRPU) Terms(scores []float64, labels []Label) (DRTerms, error) {
	if err := validateInput(scores, labels); err != nil {
		return DRTerms{}, err
	}

	var pp, pn, u float64
	var pos, unl int
	for i, s := range scores {
		c := d.centered(s)
		if labels[i] == Positive {
			pos++
			pp += -d.df(s) + d.alpha*c
			pn += c
		} else {
			unl++
			u += c
		}
	}

	t := DRTerms{
		PP: pp / float64(pos),
		PN: pn / float64(pos),
		U:  u / float64(unl),
	}
	t.N = t.U - d.alpha*t.PN
	t.N = zeroNaN(t.N)
	t.PP = zeroNaN(t.PP)
	t.U = zeroNaN(t.U)

	if t.N >= d.beta {
		t.Loss = t.PP + math.Max(0, t.N) + d.dual0
	} else {
		t.Loss = -d.gamma * t.N
	}

	slog.Debug("drpu terms",
		"positives", pos, "unlabeled", unl, "alpha", d.alpha,
		"e_pp", t.PP, "e_pn", t.PN, "e_u", t.U, "e_n", t.N, "loss", t.Loss)
	return t, nil
}

// Gradient returns d loss / d score for the branch Terms takes.
func (d *DRPU) Gradient(scores []float64, labels []Label) ([]float64, error) {
	t, err := d.Terms(scores, labels)
	if err != nil {
		return nil, err
	}

	var pos, unl int
	for _, l := range labels {
		if l == Positive {
			pos++
		} else {
			unl++
		}
	}

	// E_n is only differentiable when both partitions contribute.
	nLive := pos > 0 && unl > 0
	corrected := t.N < d.beta

	grad := make([]float64, len(scores))
	for i, s := range scores {
		// f*'(x) = x * f''(x)
		dc := s * d.ddf(s)

		var gN float64
		if nLive {
			if labels[i] == Positive {
				gN = -d.alpha * dc / float64(pos)
			} else {
				gN = dc / float64(unl)
			}
		}

		if corrected {
			grad[i] = -d.gamma * gN
			continue
		}
		if t.N > 0 {
			grad[i] = gN
		}
		if labels[i] == Positive {
			grad[i] += (-d.ddf(s) + d.alpha*dc) / float64(pos)
		}
	}
	return grad, nil
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
