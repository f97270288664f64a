package prior

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mixture draws positive scores from N(2,1) and unlabeled scores from a
// pi-weighted mix of N(2,1) and N(-2,1).
func mixture(seed uint64, n int, pi float64) (pos, unl []float64) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	pos = make([]float64, n)
	unl = make([]float64, n)
	for i := range n {
		pos[i] = rng.NormFloat64() + 2
		if rng.Float64() < pi {
			unl[i] = rng.NormFloat64() + 2
		} else {
			unl[i] = rng.NormFloat64() - 2
		}
	}
	return pos, unl
}

type fixedSolver struct {
	prior float64
	got   []float64
	sizes Partition
}

func (f *fixedSolver) Name() string { return "fixed" }

func (f *fixedSolver) EstimatePrior(scores []float64, sizes Partition) (float64, error) {
	f.got = scores
	f.sizes = sizes
	return f.prior, nil
}

func TestEstimate_ConcatenatesPartitions(t *testing.T) {
	s := &fixedSolver{prior: 0.37}
	p, err := New(s).Estimate([]float64{1, 2}, []float64{3, 4, 5})
	require.NoError(t, err)

	assert.Equal(t, 0.37, p)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, s.got)
	assert.Equal(t, Partition{Positive: 2, Unlabeled: 3}, s.sizes)

	pos, unl := s.sizes.Split(s.got)
	assert.Equal(t, []float64{1, 2}, pos)
	assert.Equal(t, []float64{3, 4, 5}, unl)
}

func TestEstimate_Validation(t *testing.T) {
	_, err := New(&fixedSolver{prior: 0.5}).Estimate(nil, []float64{1})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = New(&fixedSolver{prior: 0.5}).Estimate([]float64{1}, []float64{math.NaN()})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	for _, bad := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		_, err = New(&fixedSolver{prior: bad}).Estimate([]float64{1}, []float64{2})
		assert.True(t, errors.Is(err, ErrPriorOutOfRange), "prior %v", bad)
	}

	_, err = New(nil).Estimate([]float64{1}, []float64{2})
	assert.Error(t, err)
}

func TestSolvers_TrackPrior(t *testing.T) {
	tests := []struct {
		solver Solver
		tol    float64
	}{
		{&RatioSolver{}, 0.25},
		{&ROCSolver{}, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.solver.Name(), func(t *testing.T) {
			est := New(tt.solver)

			pos, unl := mixture(1, 1500, 0.2)
			low, err := est.Estimate(pos, unl)
			require.NoError(t, err)
			assert.InDelta(t, 0.2, low, tt.tol)

			pos, unl = mixture(2, 1500, 0.6)
			high, err := est.Estimate(pos, unl)
			require.NoError(t, err)
			assert.InDelta(t, 0.6, high, tt.tol)

			assert.Greater(t, high, low)
		})
	}
}

func TestMeanSolver(t *testing.T) {
	pos := []float64{0, 0}
	unl := []float64{0, math.Inf(-1)}
	scores := append(append([]float64{}, pos...), unl...)

	// mean sigmoid 0.25 over unlabeled, 0.5 over positives
	p, err := MeanSolver{}.EstimatePrior(scores, Partition{Positive: 2, Unlabeled: 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p, 1e-12)

	p, err = MeanSolver{Labeled: true}.EstimatePrior(scores, Partition{Positive: 2, Unlabeled: 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-12)

	lowPos, lowUnl := mixture(3, 1000, 0.2)
	highPos, highUnl := mixture(4, 1000, 0.6)
	low, err := New(MeanSolver{}).Estimate(lowPos, lowUnl)
	require.NoError(t, err)
	high, err := New(MeanSolver{}).Estimate(highPos, highUnl)
	require.NoError(t, err)
	assert.Greater(t, high, low)
}

func TestMeanSolver_CalibratedPosterior(t *testing.T) {
	logit := func(p float64) float64 { return math.Log(p / (1 - p)) }

	// 30% of the unlabeled set sits at P(y=1|x)=0.9 and the rest at 0.05,
	// so the prior is 0.3*0.9 + 0.7*0.05 = 0.305.
	unl := make([]float64, 0, 1000)
	for i := 0; i < 1000; i++ {
		if i < 300 {
			unl = append(unl, logit(0.9))
		} else {
			unl = append(unl, logit(0.05))
		}
	}
	pos := []float64{logit(0.9), logit(0.9), logit(0.5)}

	p, err := New(MeanSolver{}).Estimate(pos, unl)
	require.NoError(t, err)
	assert.InDelta(t, 0.305, p, 1e-9)

	// positives score below 1 on average, so the rescaled estimate is larger
	rescaled, err := New(MeanSolver{Labeled: true}).Estimate(pos, unl)
	require.NoError(t, err)
	assert.InDelta(t, 0.305/(2.3/3), rescaled, 1e-9)
	assert.Greater(t, rescaled, p)
}

func TestSolvers_Clip(t *testing.T) {
	pos := []float64{-5, -5, -5}
	unl := []float64{5, 5, 5}
	p, err := New(MeanSolver{Labeled: true}).Estimate(pos, unl)
	require.NoError(t, err)
	assert.Equal(t, 1-Epsilon, p)
}

func TestSolvers_SizeMismatch(t *testing.T) {
	for _, name := range Names() {
		s, err := Lookup(name)
		require.NoError(t, err)
		_, err = s.EstimatePrior([]float64{1, 2, 3}, Partition{Positive: 1, Unlabeled: 1})
		assert.True(t, errors.Is(err, ErrInvalidInput), name)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"ratio", " MEAN ", "roc"} {
		s, err := Lookup(name)
		require.NoError(t, err)
		assert.NotNil(t, s)
	}
	_, err := Lookup("km1")
	assert.Error(t, err)
}

func TestRatioSolver_Centers(t *testing.T) {
	r := &RatioSolver{Centers: 3}
	c := r.centers([]float64{5, 1, 4, 2, 3})
	assert.Equal(t, []float64{1, 3, 5}, c)

	c = r.centers([]float64{2, 1})
	assert.Equal(t, []float64{1, 2}, c)
}
