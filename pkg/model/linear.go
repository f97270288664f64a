package model

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrDimension is returned when an input row does not match the model width.
var ErrDimension = errors.New("feature count mismatch between model and input")

// Linear is a linear scorer s(x) = w·x + b. Params holds the weights followed
// by the bias so optimizers can treat the model as one flat vector.
type Linear struct {
	Params []float64
}

// NewLinear initializes weights with small normal values, bias at zero.
func NewLinear(dim int, rng *rand.Rand) *Linear {
	p := make([]float64, dim+1)
	for i := range dim {
		p[i] = rng.NormFloat64() * 0.01
	}
	return &Linear{Params: p}
}

// Dim returns the number of input features.
func (m *Linear) Dim() int {
	return len(m.Params) - 1
}

// Weights returns the weight view of Params.
func (m *Linear) Weights() []float64 {
	return m.Params[:m.Dim()]
}

// Bias returns the intercept.
func (m *Linear) Bias() float64 {
	return m.Params[m.Dim()]
}

// Score returns the raw score of every row in x.
func (m *Linear) Score(x [][]float64) ([]float64, error) {
	w := m.Weights()
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(w) {
			return nil, ErrDimension
		}
		out[i] = floats.Dot(w, row) + m.Bias()
	}
	return out, nil
}

// Backward maps the loss gradient with respect to the scores onto the
// parameters, in Params layout.
func (m *Linear) Backward(x [][]float64, dScores []float64) ([]float64, error) {
	if len(x) != len(dScores) {
		return nil, errors.Errorf("got %d rows and %d score gradients", len(x), len(dScores))
	}
	g := make([]float64, len(m.Params))
	gw := g[:m.Dim()]
	for i, row := range x {
		if len(row) != len(gw) {
			return nil, ErrDimension
		}
		floats.AddScaled(gw, dScores[i], row)
		g[m.Dim()] += dScores[i]
	}
	return g, nil
}
