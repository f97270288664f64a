package dataset

import (
	"math/rand/v2"

	"github.com/mchmarny/nnpu/pkg/risk"
)

// Example is one observation. Class is the true class in {+1,-1}, Label the
// PU label seen during training.
type Example struct {
	Features []float64
	Class    int
	Label    risk.Label
}

// Dataset is an in-memory collection of examples.
type Dataset struct {
	Name     string
	Examples []Example
	// Mean is the class mean offset of synthetic data, zero otherwise.
	Mean float64
	// Synthetic is set when the true class prior is known by construction.
	Synthetic bool
}

func (d *Dataset) Len() int {
	return len(d.Examples)
}

// Dim returns the feature dimension.
func (d *Dataset) Dim() int {
	if len(d.Examples) == 0 {
		return 0
	}
	return len(d.Examples[0].Features)
}

// Prior returns the fraction of examples whose true class is positive.
func (d *Dataset) Prior() float64 {
	if len(d.Examples) == 0 {
		return 0
	}
	var n int
	for _, e := range d.Examples {
		if e.Class == 1 {
			n++
		}
	}
	return float64(n) / float64(len(d.Examples))
}

// Labeled returns the examples carrying a positive label.
func (d *Dataset) Labeled() []Example {
	var out []Example
	for _, e := range d.Examples {
		if e.Label == risk.Positive {
			out = append(out, e)
		}
	}
	return out
}

// Batch is a contiguous slice of examples in columnar form.
type Batch struct {
	Features [][]float64
	Labels   []risk.Label
	Classes  []int
}

func (b Batch) Len() int {
	return len(b.Labels)
}

// Batches splits the dataset into batches of at most size examples. When rng
// is not nil the order is shuffled first.
func (d *Dataset) Batches(size int, rng *rand.Rand) []Batch {
	if size <= 0 {
		size = len(d.Examples)
	}
	idx := make([]int, len(d.Examples))
	for i := range idx {
		idx[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}

	var out []Batch
	for start := 0; start < len(idx); start += size {
		end := min(start+size, len(idx))
		b := Batch{
			Features: make([][]float64, 0, end-start),
			Labels:   make([]risk.Label, 0, end-start),
			Classes:  make([]int, 0, end-start),
		}
		for _, i := range idx[start:end] {
			e := d.Examples[i]
			b.Features = append(b.Features, e.Features)
			b.Labels = append(b.Labels, e.Label)
			b.Classes = append(b.Classes, e.Class)
		}
		out = append(out, b)
	}
	return out
}

// All returns the whole dataset as a single batch, in order.
func (d *Dataset) All() Batch {
	b := d.Batches(0, nil)
	if len(b) == 0 {
		return Batch{}
	}
	return b[0]
}
