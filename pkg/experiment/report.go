package experiment

import (
	"time"

	"github.com/mchmarny/nnpu/pkg/metrics"
	"github.com/mchmarny/nnpu/pkg/threshold"
)

// EpochReport summarizes one training epoch.
type EpochReport struct {
	Epoch     int     `json:"epoch" yaml:"epoch"`
	TrainLoss float64 `json:"train_loss" yaml:"train_loss"`
	TestLoss  float64 `json:"test_loss" yaml:"test_loss"`
	// Components holds the per-epoch means of the recorded risk terms.
	Components map[string]float64 `json:"components,omitempty" yaml:"components,omitempty"`
	Degenerate int                `json:"degenerate_batches" yaml:"degenerate_batches"`
	Train      *metrics.Values    `json:"train" yaml:"train"`
	Test       *metrics.Values    `json:"test" yaml:"test"`
}

// Estimate is the outcome of one prior solver on new data.
type Estimate struct {
	Solver string  `json:"solver" yaml:"solver"`
	Prior  float64 `json:"prior,omitempty" yaml:"prior,omitempty"`
	Error  string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// ShiftReport is the evaluation on data drawn under a different class prior.
type ShiftReport struct {
	TrainPrior float64 `json:"train_prior" yaml:"train_prior"`
	// TruePrior is zero when the new data does not carry a known prior.
	TruePrior float64             `json:"true_prior,omitempty" yaml:"true_prior,omitempty"`
	Size      int                 `json:"size" yaml:"size"`
	Baseline  *metrics.Values     `json:"baseline" yaml:"baseline"`
	Estimates []Estimate          `json:"estimates" yaml:"estimates"`
	Outcomes  []threshold.Outcome `json:"outcomes" yaml:"outcomes"`
}

// Report is the full record of one experiment run.
type Report struct {
	Name           string        `json:"name" yaml:"name"`
	Estimator      string        `json:"estimator" yaml:"estimator"`
	Dataset        string        `json:"dataset" yaml:"dataset"`
	LabelFrequency float64       `json:"label_frequency" yaml:"label_frequency"`
	Seed           uint64        `json:"seed" yaml:"seed"`
	Prior          float64       `json:"prior" yaml:"prior"`
	Started        time.Time     `json:"started" yaml:"started"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	Epochs         []EpochReport `json:"epochs" yaml:"epochs"`
	Shift          *ShiftReport  `json:"shift,omitempty" yaml:"shift,omitempty"`
}

// Final returns the last epoch, nil before training.
func (r *Report) Final() *EpochReport {
	if len(r.Epochs) == 0 {
		return nil
	}
	return &r.Epochs[len(r.Epochs)-1]
}
