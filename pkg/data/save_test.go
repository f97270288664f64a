package data

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/nnpu/pkg/experiment"
	"github.com/mchmarny/nnpu/pkg/metrics"
	"github.com/mchmarny/nnpu/pkg/risk"
	"github.com/mchmarny/nnpu/pkg/threshold"
)

func testReport(name, estimator string, freq, acc float64) *experiment.Report {
	return &experiment.Report{
		Name:           name,
		Estimator:      estimator,
		Dataset:        "synthetic",
		LabelFrequency: freq,
		Seed:           7,
		Prior:          0.5,
		Started:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:       1500 * time.Millisecond,
		Epochs: []experiment.EpochReport{
			{
				Epoch: 1, TrainLoss: 0.4, TestLoss: 0.45, Degenerate: 1,
				Components: map[string]float64{risk.ComponentLoss: 0.4, risk.ComponentLabeled: 0.1},
				Train:      &metrics.Values{Accuracy: 0.7, Count: 100},
				Test:       &metrics.Values{Accuracy: 0.6, Count: 50},
			},
			{
				Epoch: 2, TrainLoss: 0.3, TestLoss: 0.35,
				Train: &metrics.Values{Accuracy: 0.8, Count: 100},
				Test:  &metrics.Values{Accuracy: acc, F1: acc, Count: 50},
			},
		},
		Shift: &experiment.ShiftReport{
			TrainPrior: 0.5,
			TruePrior:  0.3,
			Size:       50,
			Baseline:   &metrics.Values{Accuracy: 0.7, Count: 50},
			Estimates: []experiment.Estimate{
				{Solver: "mean", Prior: 0.32},
				{Solver: "ratio", Error: "degenerate score distribution"},
			},
			Outcomes: []threshold.Outcome{
				{Candidate: threshold.Candidate{Name: "true", Prior: 0.3}, Tau: 0.7 / 0.3, Metrics: &metrics.Values{Accuracy: 0.9}},
				{Candidate: threshold.Candidate{Name: "mean", Prior: 0.32}, Tau: 2.125, Metrics: &metrics.Values{Accuracy: 0.88}},
			},
		},
	}
}

func saveTestReport(t *testing.T, db *sql.DB, r *experiment.Report) int64 {
	t.Helper()
	id, err := SaveReport(db, r)
	require.NoError(t, err)
	require.Positive(t, id)
	return id
}

func TestSaveReport(t *testing.T) {
	db := setupTestDB(t)
	id := saveTestReport(t, db, testReport("a", "nnPUcc", 0.5, 0.9))

	r, err := GetRun(db, id)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Name)
	assert.Equal(t, "nnPUcc", r.Estimator)
	assert.Equal(t, uint64(7), r.Seed)
	assert.Equal(t, 1500*time.Millisecond, r.Duration)
	assert.True(t, r.Started.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, 0.9, r.TestAccuracy)
	assert.Equal(t, 0.9, r.TestF1)

	epochs, err := GetEpochs(db, id)
	require.NoError(t, err)
	require.Len(t, epochs, 2)
	assert.Equal(t, 1, epochs[0].Degenerate)
	assert.Equal(t, 0.1, epochs[0].Components[risk.ComponentLabeled])
	assert.Nil(t, epochs[1].Components)
	require.NotNil(t, epochs[0].Train)
	assert.Equal(t, 0.7, epochs[0].Train.Accuracy)
	assert.Equal(t, 50, epochs[1].Test.Count)

	estimates, err := GetPriorEstimates(db, id)
	require.NoError(t, err)
	require.Len(t, estimates, 2)
	assert.Equal(t, "mean", estimates[0].Solver)
	assert.NotEmpty(t, estimates[1].Error)

	ths, err := GetThresholds(db, id)
	require.NoError(t, err)
	require.Len(t, ths, 2)
	assert.Equal(t, "mean", ths[0].Candidate)
	assert.Equal(t, 0.9, ths[1].Metrics.Accuracy)
}

func TestSaveReport_NilReport(t *testing.T) {
	db := setupTestDB(t)
	_, err := SaveReport(db, nil)
	assert.Error(t, err)
}

func TestGetRuns(t *testing.T) {
	db := setupTestDB(t)

	runs, err := GetRuns(db, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	saveTestReport(t, db, testReport("a", "nnPUcc", 0.5, 0.9))
	saveTestReport(t, db, testReport("b", "uPUcc", 0.5, 0.7))
	last := saveTestReport(t, db, testReport("c", "nnPUcc", 0.3, 0.8))

	runs, err = GetRuns(db, nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, last, runs[0].ID)

	est := "uPUcc"
	runs, err = GetRuns(db, &est, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].Name)

	runs, err = GetRuns(db, nil, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := GetRun(db, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetEstimatorSummary(t *testing.T) {
	db := setupTestDB(t)
	saveTestReport(t, db, testReport("a", "nnPUcc", 0.5, 0.9))
	saveTestReport(t, db, testReport("b", "nnPUcc", 0.5, 0.7))
	saveTestReport(t, db, testReport("c", "uPUcc", 0.5, 0.6))

	list, err := GetEstimatorSummary(db)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "nnPUcc", list[0].Estimator)
	assert.Equal(t, 2, list[0].Runs)
	assert.InDelta(t, 0.8, list[0].Accuracy, 1e-12)
	assert.Equal(t, "uPUcc", list[1].Estimator)
	assert.Equal(t, 1, list[1].Runs)
}

func TestDeleteRun(t *testing.T) {
	db := setupTestDB(t)
	id := saveTestReport(t, db, testReport("a", "nnPUcc", 0.5, 0.9))

	require.NoError(t, DeleteRun(db, id))
	_, err := GetRun(db, id)
	assert.ErrorIs(t, err, ErrNotFound)

	epochs, err := GetEpochs(db, id)
	require.NoError(t, err)
	assert.Empty(t, epochs)

	assert.ErrorIs(t, DeleteRun(db, id), ErrNotFound)
}
