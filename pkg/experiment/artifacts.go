package experiment

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/mchmarny/nnpu/pkg/metrics"
	"github.com/mchmarny/nnpu/pkg/risk"
)

const (
	dirMode  = 0700
	fileMode = 0600

	LossHistoryFile  = "loss-history.csv"
	MetricsFile      = "metrics.json"
	TrainEpochsFile  = "train-metrics-per-epoch.json"
	TestEpochsFile   = "test-metrics-per-epoch.json"
	NewDataFile      = "new-data-metrics.json"
	epochColumn      = "epoch"
	trainLossColumn  = "train_loss"
	testLossColumn   = "test_loss"
	degenerateColumn = "degenerate_batches"
)

// WriteArtifacts persists the report into dir as CSV and JSON files.
func WriteArtifacts(dir string, r *Report) error {
	if dir == "" {
		return errors.New("artifact directory required")
	}
	if r == nil {
		return errors.New("report required")
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Wrapf(err, "failed to create dir: %s", dir)
	}

	if err := writeLossHistory(filepath.Join(dir, LossHistoryFile), r); err != nil {
		return err
	}

	final := map[string]*metrics.Values{}
	if e := r.Final(); e != nil {
		final["train"] = e.Train
		final["test"] = e.Test
	}
	train := make([]*metrics.Values, len(r.Epochs))
	test := make([]*metrics.Values, len(r.Epochs))
	for i, e := range r.Epochs {
		train[i], test[i] = e.Train, e.Test
	}

	files := map[string]any{
		MetricsFile:     final,
		TrainEpochsFile: train,
		TestEpochsFile:  test,
	}
	if r.Shift != nil {
		files[NewDataFile] = r.Shift
	}
	for name, v := range files {
		if err := writeJSON(filepath.Join(dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write file: %s", path)
	}
	return nil
}

func writeLossHistory(path string, r *Report) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return errors.Wrapf(err, "failed to create file: %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{epochColumn, trainLossColumn, testLossColumn, degenerateColumn}
	header = append(header, risk.Components...)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "failed to write loss history header")
	}

	for _, e := range r.Epochs {
		row := []string{
			strconv.Itoa(e.Epoch),
			formatFloat(e.TrainLoss),
			formatFloat(e.TestLoss),
			strconv.Itoa(e.Degenerate),
		}
		for _, c := range risk.Components {
			v, ok := e.Components[c]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write epoch %d", e.Epoch)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush loss history")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
