package dataset

import (
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/mchmarny/nnpu/pkg/auth"
	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/risk"
)

func TestSynthetic(t *testing.T) {
	d, err := Synthetic(SyntheticConfig{N: 4000, Dim: 3, Prior: 0.3, Mean: 1, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, 4000, d.Len())
	assert.Equal(t, 3, d.Dim())
	assert.True(t, d.Synthetic)
	assert.InDelta(t, 0.3, d.Prior(), 0.03)
	assert.Empty(t, d.Labeled())

	var posSum, negSum float64
	var posN, negN int
	for _, e := range d.Examples {
		if e.Class == 1 {
			posSum += e.Features[0]
			posN++
		} else {
			negSum += e.Features[0]
			negN++
		}
	}
	assert.InDelta(t, 1, posSum/float64(posN), 0.15)
	assert.InDelta(t, -1, negSum/float64(negN), 0.15)
}

func TestSyntheticDeterministic(t *testing.T) {
	cfg := SyntheticConfig{N: 50, Dim: 2, Prior: 0.5, Mean: 1, Seed: 11}
	a, err := Synthetic(cfg)
	require.NoError(t, err)
	b, err := Synthetic(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Examples, b.Examples)
}

func TestSyntheticInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  SyntheticConfig
	}{
		{"no samples", SyntheticConfig{N: 0, Dim: 1, Prior: 0.5}},
		{"no dimension", SyntheticConfig{N: 10, Dim: 0, Prior: 0.5}},
		{"prior zero", SyntheticConfig{N: 10, Dim: 1, Prior: 0}},
		{"prior one", SyntheticConfig{N: 10, Dim: 1, Prior: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Synthetic(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSCAR(t *testing.T) {
	d, err := Synthetic(SyntheticConfig{N: 5000, Dim: 1, Prior: 0.4, Mean: 1, Seed: 3})
	require.NoError(t, err)
	require.NoError(t, SCAR{LabelFrequency: 0.5, Seed: 1}.Apply(d))

	var positives, labeled int
	for _, e := range d.Examples {
		if e.Class == 1 {
			positives++
		}
		if e.Label == risk.Positive {
			labeled++
			assert.Equal(t, 1, e.Class, "negatives must never be labeled")
		}
	}
	assert.InDelta(t, 0.5, float64(labeled)/float64(positives), 0.05)

	assert.Error(t, SCAR{LabelFrequency: 0}.Apply(d))
	assert.Error(t, SCAR{LabelFrequency: 1.5}.Apply(d))
}

func TestReveal(t *testing.T) {
	d := &Dataset{Examples: []Example{
		{Features: []float64{1}, Class: 1, Label: risk.Unlabeled},
		{Features: []float64{2}, Class: -1, Label: risk.Unlabeled},
	}}
	Reveal(d)
	assert.Equal(t, risk.Positive, d.Examples[0].Label)
	assert.Equal(t, risk.Unlabeled, d.Examples[1].Label)
}

func TestBatches(t *testing.T) {
	d, err := Synthetic(SyntheticConfig{N: 10, Dim: 2, Prior: 0.5, Mean: 1, Seed: 5})
	require.NoError(t, err)

	batches := d.Batches(4, nil)
	require.Len(t, batches, 3)
	assert.Equal(t, 4, batches[0].Len())
	assert.Equal(t, 2, batches[2].Len())
	assert.Equal(t, d.Examples[0].Features, batches[0].Features[0])

	shuffled := d.Batches(4, rand.New(rand.NewPCG(1, 2)))
	var total int
	for _, b := range shuffled {
		total += b.Len()
	}
	assert.Equal(t, 10, total)

	all := d.All()
	assert.Equal(t, 10, all.Len())
	assert.Equal(t, 0, (&Dataset{}).All().Len())
}

func TestLoad(t *testing.T) {
	in := "# class,x1,x2\n1,0.5,1.5\n0,-1,-2\n-1,3,4\n"
	d, err := Load(strings.NewReader(in), "test")
	require.NoError(t, err)
	assert.Equal(t, "test", d.Name)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 2, d.Dim())
	assert.Equal(t, []int{1, -1, -1}, d.All().Classes)
	assert.InDelta(t, 1.0/3, d.Prior(), 1e-12)
	assert.False(t, d.Synthetic)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no features", "1\n"},
		{"bad class", "x,1\n"},
		{"bad feature", "1,abc\n"},
		{"ragged", "1,1,2\n0,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.in), "bad")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	_, err := LoadFile("/does/not/exist.csv")
	assert.Error(t, err)

	p := filepath.Join(t.TempDir(), "local.csv")
	require.NoError(t, os.WriteFile(p, []byte("1,1\n0,-1\n"), 0600))
	d, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "local", d.Name)
	assert.Equal(t, 2, d.Len())
}

func TestLoadFileURL(t *testing.T) {
	keyring.MockInit()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(auth.TokenEnvVar, "data-token")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer data-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/remote.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("1,0.5,1\n-1,-0.5,-1\n"))
	}))
	defer srv.Close()

	d, err := LoadFile(srv.URL + "/remote.csv")
	require.NoError(t, err)
	assert.Equal(t, "remote", d.Name)
	assert.Equal(t, 2, d.Dim())

	_, err = LoadFile(srv.URL + "/missing.csv")
	assert.Error(t, err)
}

func TestLoadFileURLStoredTokenFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keychain"))
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(auth.TokenEnvVar, "")

	dir, _, err := config.GetOrCreateHomeDir(config.AppName)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".nnpu"), dir)
	require.NoError(t, auth.NewStore(dir).Save("file-token"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer file-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("1,0.5\n-1,-0.5\n"))
	}))
	defer srv.Close()

	d, err := LoadFile(srv.URL + "/secured.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}
