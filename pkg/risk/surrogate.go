package risk

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
)

// Surrogate is a differentiable proxy for the 0/1 loss. Loss(x) is the cost of
// predicting positive for an example with score x, Loss(-x) the cost of
// predicting negative.
type Surrogate interface {
	Loss(x float64) float64
	Deriv(x float64) float64
}

// Sigmoid is the default surrogate, l(x) = sigmoid(-x).
type Sigmoid struct{}

func (Sigmoid) Loss(x float64) float64 {
	return sigmoid(-x)
}

func (Sigmoid) Deriv(x float64) float64 {
	s := sigmoid(-x)
	return -s * (1 - s)
}

// Logistic is l(x) = log(1 + exp(-x)).
type Logistic struct{}

func (Logistic) Loss(x float64) float64 {
	return softplus(-x)
}

func (Logistic) Deriv(x float64) float64 {
	return -sigmoid(-x)
}

// SurrogateFunc adapts a plain loss function. The derivative is evaluated
// numerically with a central difference.
type SurrogateFunc func(x float64) float64

func (f SurrogateFunc) Loss(x float64) float64 {
	return f(x)
}

func (f SurrogateFunc) Deriv(x float64) float64 {
	return fd.Derivative(f, x, &fd.Settings{Formula: fd.Central})
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
