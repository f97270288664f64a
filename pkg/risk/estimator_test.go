package risk

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scenarioScores = []float64{2.0, -1.0, 0.5, -0.5, -3.0}
	scenarioLabels = []Label{Positive, Positive, Unlabeled, Unlabeled, Unlabeled}
)

func newPU(t *testing.T, v Variant, prior float64, opts ...Option) *PU {
	t.Helper()
	e, err := New(Config{Prior: prior, Variant: v}, opts...)
	require.NoError(t, err)
	return e
}

func TestCompute_Scenario(t *testing.T) {
	tests := []struct {
		variant Variant
		want    float64
	}{
		{NNPUcc, 0.2892465579867045},
		{UPUcc, 0.2892465579867045},
		{NNPUss, 0.3795374747659378},
		{UPUss, 0.3795374747659378},
	}

	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			e := newPU(t, tt.variant, 0.4)
			loss, err := e.Compute(scenarioScores, scenarioLabels)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, loss, 1e-6)
		})
	}
}

func TestDecompose_Terms(t *testing.T) {
	e := newPU(t, NNPUcc, 0.4)
	d, err := e.Decompose(scenarioScores, scenarioLabels)
	require.NoError(t, err)

	assert.InDelta(t, 0.1700523001304245, d.Labeled, 1e-9)
	assert.InDelta(t, 0.3491419577258556, d.WholeCC, 1e-9)
	assert.InDelta(t, 0.43943287450508883, d.WholeSS, 1e-9)
	assert.InDelta(t, 0.2299476998695755, d.Correction, 1e-9)
	assert.Equal(t, 2, d.Positives)
	assert.Equal(t, 3, d.Unlabeled)
	assert.False(t, d.Degenerate)
}

func TestCompute_AllPositive(t *testing.T) {
	scores := []float64{1.5, -0.25, 0.75}
	labels := []Label{Positive, Positive, Positive}
	prior := 0.3

	var lp, ln float64
	for _, s := range scores {
		lp += sigmoid(-s)
		ln += sigmoid(s)
	}
	lp /= float64(len(scores))
	ln /= float64(len(scores))

	// empty U contributes nothing to the closed-form complement
	upu := newPU(t, UPUcc, prior)
	loss, err := upu.Compute(scores, labels)
	require.NoError(t, err)
	assert.InDelta(t, prior*lp-prior*ln, loss, 1e-12)

	nnpu := newPU(t, NNPUcc, prior)
	loss, err = nnpu.Compute(scores, labels)
	require.NoError(t, err)
	assert.InDelta(t, prior*ln, loss, 1e-12)
}

func TestCompute_EmptyPositivePartition(t *testing.T) {
	h := NewHistory(0)
	e := newPU(t, NNPUcc, 0.5, WithRecorder(h))
	d, err := e.Decompose([]float64{0.3, -1.2}, []Label{Unlabeled, Unlabeled})
	require.NoError(t, err)

	assert.Equal(t, 0.0, d.Labeled)
	assert.Equal(t, 0.0, d.Correction)
	assert.True(t, d.Degenerate)
	assert.False(t, math.IsNaN(d.Loss))
	assert.Equal(t, 1, h.Degenerate())
}

func TestCompute_NonNegativeCorrection(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, beta := range []float64{0, 0.01, 0.05} {
		for _, gamma := range []float64{0.5, 1, 2} {
			e, err := New(Config{Prior: 0.6, Variant: NNPUcc, Beta: beta, Gamma: gamma})
			require.NoError(t, err)

			for range 50 {
				scores := make([]float64, 20)
				labels := make([]Label, 20)
				for i := range scores {
					scores[i] = rng.NormFloat64() * 3
					labels[i] = Unlabeled
					if rng.Float64() < 0.5 {
						labels[i] = Positive
						scores[i] += 2
					}
				}
				d, err := e.Decompose(scores, labels)
				require.NoError(t, err)

				neg := d.Negative(ClosedForm)
				if neg < -beta {
					assert.Equal(t, -gamma*neg, d.Loss)
					assert.GreaterOrEqual(t, d.Loss, gamma*beta)
				} else {
					assert.InDelta(t, d.Labeled+neg, d.Loss, 1e-12)
				}
			}
		}
	}
}

func TestCompute_UnbiasedMayGoNegative(t *testing.T) {
	scores := []float64{4, 4, -6}
	labels := []Label{Positive, Positive, Unlabeled}
	upu := newPU(t, UPUcc, 0.9)
	loss, err := upu.Compute(scores, labels)
	require.NoError(t, err)
	assert.Less(t, loss, 0.0)

	nnpu := newPU(t, NNPUcc, 0.9)
	loss, err = nnpu.Compute(scores, labels)
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)
}

func TestClosedFormAndSingleSampleAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	n := 20000
	scores := make([]float64, 2*n)
	labels := make([]Label, 2*n)
	for i := range scores {
		scores[i] = rng.NormFloat64()*1.5 + 0.3
		labels[i] = Unlabeled
		if i%2 == 0 {
			labels[i] = Positive
		}
	}

	d, err := newPU(t, UPUcc, 0.5).Decompose(scores, labels)
	require.NoError(t, err)
	assert.InDelta(t, d.WholeCC, d.WholeSS, 0.02)
}

func TestNew_Configuration(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero prior", Config{Prior: 0, Variant: NNPUcc}},
		{"one prior", Config{Prior: 1, Variant: NNPUcc}},
		{"negative prior", Config{Prior: -0.2, Variant: NNPUcc}},
		{"nan prior", Config{Prior: math.NaN(), Variant: NNPUcc}},
		{"negative beta", Config{Prior: 0.5, Beta: -1, Variant: NNPUcc}},
		{"negative gamma", Config{Prior: 0.5, Gamma: -1, Variant: NNPUcc}},
		{"unknown variant", Config{Prior: 0.5, Variant: Variant{Correction: 9}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	e := newPU(t, NNPUss, 0.4)

	_, err := e.Compute([]float64{1, 2}, []Label{Positive})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = e.Compute([]float64{1, 2}, []Label{Positive, 0})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = e.Gradient([]float64{1}, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestCompute_RecordsHistory(t *testing.T) {
	h := NewHistory(0)
	e := newPU(t, NNPUcc, 0.4, WithRecorder(h))
	for range 3 {
		_, err := e.Compute(scenarioScores, scenarioLabels)
		require.NoError(t, err)
	}

	require.Equal(t, 3, h.Len())
	s := h.Series()
	assert.Len(t, s, len(Components))
	for _, c := range Components {
		assert.Len(t, s[c], 3)
	}
	assert.InDelta(t, 0.2892465579867045, h.Means()[ComponentLoss], 1e-9)
	assert.Same(t, h, e.Recorder())
}

func numericGradient(t *testing.T, e Estimator, scores []float64, labels []Label) []float64 {
	t.Helper()
	const step = 1e-6
	out := make([]float64, len(scores))
	for i := range scores {
		x := append([]float64(nil), scores...)
		x[i] += step
		hi, err := e.Compute(x, labels)
		require.NoError(t, err)
		x[i] -= 2 * step
		lo, err := e.Compute(x, labels)
		require.NoError(t, err)
		out[i] = (hi - lo) / (2 * step)
	}
	return out
}

func TestGradient_MatchesFiniteDifference(t *testing.T) {
	labels := []Label{Positive, Positive, Unlabeled, Unlabeled, Unlabeled}

	tests := []struct {
		name   string
		scores []float64
		cfg    Config
	}{
		{"nnPUcc unconstrained branch", scenarioScores, Config{Prior: 0.4, Variant: NNPUcc}},
		{"nnPUss unconstrained branch", scenarioScores, Config{Prior: 0.4, Variant: NNPUss}},
		{"nnPUcc corrected branch", []float64{3, 4, -4, -5, -3}, Config{Prior: 0.9, Variant: NNPUcc, Gamma: 0.5}},
		{"uPUss logistic", scenarioScores, Config{Prior: 0.3, Variant: UPUss, Surrogate: Logistic{}}},
		{"uPUcc numeric surrogate", scenarioScores, Config{Prior: 0.3, Variant: UPUcc, Surrogate: SurrogateFunc(func(x float64) float64 {
			return math.Exp(-x)
		})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			require.NoError(t, err)
			got, err := e.Gradient(tt.scores, labels)
			require.NoError(t, err)
			want := numericGradient(t, e, tt.scores, labels)
			for i := range want {
				assert.InDelta(t, want[i], got[i], 1e-5, "index %d", i)
			}
		})
	}
}

func TestVariantNames(t *testing.T) {
	assert.Equal(t, "nnPUcc", NNPUcc.String())
	assert.Equal(t, "nnPUss", NNPUss.String())
	assert.Equal(t, "uPUcc", UPUcc.String())
	assert.Equal(t, "uPUss", UPUss.String())
	assert.Equal(t, "unknown", Variant{Mode: 5}.String())

	for _, n := range []string{"nnPUcc", "NNPUSS", " uPUcc ", "upuss"} {
		v, err := ParseVariant(n)
		require.NoError(t, err)
		assert.True(t, v == NNPUcc || v == NNPUss || v == UPUcc || v == UPUss)
	}

	_, err := ParseVariant("DRPUcc")
	assert.Error(t, err)
	assert.True(t, IsDRPU("drpucc"))
	assert.Contains(t, Variants(), DRPUName)
}

func TestLabelsFromInts(t *testing.T) {
	l, err := LabelsFromInts([]int{1, -1, 1})
	require.NoError(t, err)
	assert.Equal(t, []Label{Positive, Unlabeled, Positive}, l)

	_, err = LabelsFromInts([]int{1, 0})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "invalid", Label(3).String())
}
