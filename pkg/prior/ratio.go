package prior

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	RatioSolverName = "ratio"

	defaultCenters = 100
	defaultLambda  = 0.1
)

// RatioSolver fits the density ratio r(s) = p_P(s) / p_U(s) by unconstrained
// least-squares importance fitting on a Gaussian kernel basis. Because
// p_U = pi*p_P + (1-pi)*p_N, r is bounded by 1/pi and the prior estimate is
// 1 / max r over the positive sample.
type RatioSolver struct {
	// Centers caps the number of kernel centers taken from positive scores.
	Centers int
	// Lambda is the ridge penalty.
	Lambda float64
	// Bandwidth of the kernels, Silverman's rule when zero.
	Bandwidth float64
}

func (r *RatioSolver) Name() string {
	return RatioSolverName
}

func (r *RatioSolver) EstimatePrior(scores []float64, sizes Partition) (float64, error) {
	if err := checkSizes(scores, sizes); err != nil {
		return 0, err
	}
	pos, unl := sizes.Split(scores)

	centers := r.centers(pos)
	sigma := r.bandwidth(scores)
	b := len(centers)

	basis := func(x float64, dst []float64) {
		for i, c := range centers {
			d := x - c
			dst[i] = math.Exp(-d * d / (2 * sigma * sigma))
		}
	}

	phiU := mat.NewDense(len(unl), b, nil)
	row := make([]float64, b)
	for i, u := range unl {
		basis(u, row)
		phiU.SetRow(i, row)
	}

	h := mat.NewVecDense(b, nil)
	for _, p := range pos {
		basis(p, row)
		for i, v := range row {
			h.SetVec(i, h.AtVec(i)+v/float64(len(pos)))
		}
	}

	lambda := r.Lambda
	if lambda <= 0 {
		lambda = defaultLambda
	}
	H := mat.NewSymDense(b, nil)
	H.SymOuterK(1/float64(len(unl)), phiU.T())
	for i := range b {
		H.SetSym(i, i, H.At(i, i)+lambda)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(H); !ok {
		return 0, errors.Wrap(ErrDegenerate, "kernel system is not positive definite")
	}
	var theta mat.VecDense
	if err := chol.SolveVecTo(&theta, h); err != nil {
		return 0, errors.Wrap(err, "failed to solve kernel system")
	}
	for i := range b {
		theta.SetVec(i, math.Max(0, theta.AtVec(i)))
	}

	var peak float64
	for _, p := range pos {
		basis(p, row)
		v := mat.Dot(&theta, mat.NewVecDense(b, row))
		peak = math.Max(peak, v)
	}
	if peak <= 0 {
		return 0, errors.Wrap(ErrDegenerate, "density ratio vanished on positive scores")
	}
	return clip(1 / peak), nil
}

// centers picks evenly spaced order statistics of the positive scores.
func (r *RatioSolver) centers(pos []float64) []float64 {
	n := r.Centers
	if n <= 0 {
		n = defaultCenters
	}
	sorted := append([]float64(nil), pos...)
	sort.Float64s(sorted)
	if len(sorted) <= n {
		return sorted
	}
	out := make([]float64, n)
	step := float64(len(sorted)-1) / float64(n-1)
	for i := range out {
		out[i] = sorted[int(math.Round(float64(i)*step))]
	}
	return out
}

func (r *RatioSolver) bandwidth(scores []float64) float64 {
	if r.Bandwidth > 0 {
		return r.Bandwidth
	}
	sd := stat.StdDev(scores, nil)
	bw := 1.06 * sd * math.Pow(float64(len(scores)), -0.2)
	if bw <= 0 || math.IsNaN(bw) {
		return 1
	}
	return bw
}
