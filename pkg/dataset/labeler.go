package dataset

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mchmarny/nnpu/pkg/risk"
)

// SCAR labels positives selected completely at random: every positive is
// labeled with probability LabelFrequency, negatives are never labeled.
type SCAR struct {
	LabelFrequency float64
	Seed           uint64
}

// Apply overwrites the labels of d.
func (s SCAR) Apply(d *Dataset) error {
	if s.LabelFrequency <= 0 || s.LabelFrequency > 1 {
		return errors.Errorf("label frequency must be in (0, 1], got %v", s.LabelFrequency)
	}
	pick := distuv.Bernoulli{P: s.LabelFrequency, Src: rand.NewPCG(s.Seed, ^s.Seed)}
	for i := range d.Examples {
		d.Examples[i].Label = risk.Unlabeled
		if d.Examples[i].Class == 1 && pick.Rand() == 1 {
			d.Examples[i].Label = risk.Positive
		}
	}
	return nil
}

// Reveal labels every example with its true class, the fully labeled view
// used to score held-out data.
func Reveal(d *Dataset) {
	for i := range d.Examples {
		d.Examples[i].Label = risk.Label(d.Examples[i].Class)
	}
}
