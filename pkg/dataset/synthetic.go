package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mchmarny/nnpu/pkg/risk"
)

// SyntheticConfig describes a two-Gaussian dataset: positives centered at
// +Mean and negatives at -Mean in every dimension, unit variance.
type SyntheticConfig struct {
	N     int
	Dim   int
	Prior float64
	Mean  float64
	Seed  uint64
}

// Synthetic draws a dataset. Every example starts unlabeled; apply a Labeler
// to reveal positives.
func Synthetic(cfg SyntheticConfig) (*Dataset, error) {
	if cfg.N <= 0 {
		return nil, errors.Errorf("sample size must be positive, got %d", cfg.N)
	}
	if cfg.Dim <= 0 {
		return nil, errors.Errorf("dimension must be positive, got %d", cfg.Dim)
	}
	if cfg.Prior <= 0 || cfg.Prior >= 1 {
		return nil, errors.Errorf("prior must be in (0, 1), got %v", cfg.Prior)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	class := distuv.Bernoulli{P: cfg.Prior, Src: src}
	pos := distuv.Normal{Mu: cfg.Mean, Sigma: 1, Src: src}
	neg := distuv.Normal{Mu: -cfg.Mean, Sigma: 1, Src: src}

	d := &Dataset{
		Name:      fmt.Sprintf("synthetic-%gpi-%gmean", cfg.Prior, cfg.Mean),
		Examples:  make([]Example, cfg.N),
		Mean:      cfg.Mean,
		Synthetic: true,
	}
	for i := range d.Examples {
		c, dist := -1, neg
		if class.Rand() == 1 {
			c, dist = 1, pos
		}
		x := make([]float64, cfg.Dim)
		for j := range x {
			x[j] = dist.Rand()
		}
		d.Examples[i] = Example{Features: x, Class: c, Label: risk.Unlabeled}
	}
	return d, nil
}
