package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultBeta1       = 0.9
	DefaultBeta2       = 0.999
	DefaultEpsilon     = 1e-8
	DefaultWeightDecay = 0.005
)

// Adam is the Adam optimizer with L2 weight decay folded into the gradient.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64

	m, v []float64
	t    int
}

// NewAdam returns an optimizer with the default moments and weight decay.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        DefaultBeta1,
		Beta2:        DefaultBeta2,
		Epsilon:      DefaultEpsilon,
		WeightDecay:  DefaultWeightDecay,
	}
}

// Step updates params in place.
func (o *Adam) Step(params, grads []float64) {
	if o.m == nil || len(o.m) != len(params) {
		o.m = make([]float64, len(params))
		o.v = make([]float64, len(params))
		o.t = 0
	}
	o.t++

	g := make([]float64, len(grads))
	copy(g, grads)
	if o.WeightDecay != 0 {
		floats.AddScaled(g, o.WeightDecay, params)
	}

	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for i := range params {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*g[i]
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*g[i]*g[i]
		mHat := o.m[i] / c1
		vHat := o.v[i] / c2
		params[i] -= o.LearningRate * mHat / (math.Sqrt(vHat) + o.Epsilon)
	}
}

// Steps returns the number of updates applied so far.
func (o *Adam) Steps() int {
	return o.t
}
