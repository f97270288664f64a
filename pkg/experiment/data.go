package experiment

import (
	"github.com/pkg/errors"

	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/dataset"
)

// LoadData returns the PU-labeled training set and the fully labeled test set.
func LoadData(cfg *config.Config) (train, test *dataset.Dataset, err error) {
	switch cfg.Data.Source {
	case config.SourceCSV:
		if train, err = dataset.LoadFile(cfg.Data.TrainPath); err != nil {
			return nil, nil, errors.Wrap(err, "loading train set")
		}
		if test, err = dataset.LoadFile(cfg.Data.TestPath); err != nil {
			return nil, nil, errors.Wrap(err, "loading test set")
		}
		if train.Dim() != test.Dim() {
			return nil, nil, errors.Errorf("train (%d) and test (%d) feature counts differ", train.Dim(), test.Dim())
		}
	default:
		if train, err = synthetic(cfg, cfg.Data.TrainSize, cfg.Data.Prior, cfg.Seed); err != nil {
			return nil, nil, errors.Wrap(err, "generating train set")
		}
		if test, err = synthetic(cfg, cfg.Data.TestSize, cfg.Data.Prior, cfg.Seed+1); err != nil {
			return nil, nil, errors.Wrap(err, "generating test set")
		}
	}

	if err := (dataset.SCAR{LabelFrequency: cfg.LabelFrequency, Seed: cfg.Seed}).Apply(train); err != nil {
		return nil, nil, errors.Wrap(err, "labeling train set")
	}
	dataset.Reveal(test)
	return train, test, nil
}

// LoadShiftData returns the new data used to evaluate threshold adjustment.
func LoadShiftData(cfg *config.Config) (*dataset.Dataset, error) {
	if cfg.Shift.Path != "" {
		d, err := dataset.LoadFile(cfg.Shift.Path)
		if err != nil {
			return nil, errors.Wrap(err, "loading new data")
		}
		return d, nil
	}
	size := cfg.Shift.Size
	if size <= 0 {
		size = cfg.Data.TestSize
	}
	return synthetic(cfg, size, cfg.Shift.Prior, cfg.Seed+2)
}

func synthetic(cfg *config.Config, n int, p float64, seed uint64) (*dataset.Dataset, error) {
	return dataset.Synthetic(dataset.SyntheticConfig{
		N:     n,
		Dim:   cfg.Data.Dim,
		Prior: p,
		Mean:  cfg.Data.Mean,
		Seed:  seed,
	})
}
