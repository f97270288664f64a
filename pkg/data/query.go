package data

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/mchmarny/nnpu/pkg/experiment"
	"github.com/mchmarny/nnpu/pkg/metrics"
)

const (
	defaultRunLimit = 100

	selectRunBaseSQL = `SELECT
			r.id,
			r.name,
			r.estimator,
			r.dataset,
			r.label_frequency,
			r.seed,
			r.prior,
			r.started,
			r.duration_ms,
			COALESCE(m.accuracy, 0),
			COALESCE(m.f1, 0)
		FROM run r
		LEFT JOIN metric m ON m.run_id = r.id
			AND m.split = 'test'
			AND m.epoch = (SELECT MAX(e.epoch) FROM epoch e WHERE e.run_id = r.id)
	`

	selectRunsSQL = selectRunBaseSQL + `WHERE r.estimator = COALESCE(?, r.estimator)
		ORDER BY r.id DESC
		LIMIT ?
	`

	selectRunSQL = selectRunBaseSQL + `WHERE r.id = ?`

	selectEpochsSQL = `SELECT
			epoch,
			train_loss,
			test_loss,
			degenerate
		FROM epoch
		WHERE run_id = ?
		ORDER BY epoch
	`

	selectComponentsSQL = `SELECT epoch, name, value
		FROM component
		WHERE run_id = ?
	`

	selectMetricsSQL = `SELECT epoch, split, accuracy, prec, recall, f1, auc, pos_fraction, n
		FROM metric
		WHERE run_id = ?
	`

	selectPriorEstimatesSQL = `SELECT solver, prior, error
		FROM prior_estimate
		WHERE run_id = ?
		ORDER BY solver
	`

	selectThresholdsSQL = `SELECT candidate, prior, tau, accuracy, prec, recall, f1, auc, pos_fraction
		FROM threshold
		WHERE run_id = ?
		ORDER BY tau
	`

	selectEstimatorSummarySQL = `SELECT
			r.estimator,
			r.label_frequency,
			COUNT(*) AS runs,
			AVG(m.accuracy) AS accuracy,
			AVG(m.f1) AS f1
		FROM run r
		JOIN metric m ON m.run_id = r.id
			AND m.split = 'test'
			AND m.epoch = (SELECT MAX(e.epoch) FROM epoch e WHERE e.run_id = r.id)
		GROUP BY r.estimator, r.label_frequency
		ORDER BY r.estimator, r.label_frequency
	`
)

var deleteRunSQL = []string{
	"DELETE FROM threshold WHERE run_id = ?",
	"DELETE FROM prior_estimate WHERE run_id = ?",
	"DELETE FROM metric WHERE run_id = ?",
	"DELETE FROM component WHERE run_id = ?",
	"DELETE FROM epoch WHERE run_id = ?",
	"DELETE FROM run WHERE id = ?",
}

// Run is a stored experiment with its final test metrics.
type Run struct {
	ID             int64         `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	Estimator      string        `json:"estimator" yaml:"estimator"`
	Dataset        string        `json:"dataset" yaml:"dataset"`
	LabelFrequency float64       `json:"label_frequency" yaml:"label_frequency"`
	Seed           uint64        `json:"seed" yaml:"seed"`
	Prior          float64       `json:"prior" yaml:"prior"`
	Started        time.Time     `json:"started" yaml:"started"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	TestAccuracy   float64       `json:"test_accuracy" yaml:"test_accuracy"`
	TestF1         float64       `json:"test_f1" yaml:"test_f1"`
}

// Epoch is one stored training epoch.
type Epoch struct {
	Epoch      int                `json:"epoch" yaml:"epoch"`
	TrainLoss  float64            `json:"train_loss" yaml:"train_loss"`
	TestLoss   float64            `json:"test_loss" yaml:"test_loss"`
	Degenerate int                `json:"degenerate_batches" yaml:"degenerate_batches"`
	Components map[string]float64 `json:"components,omitempty" yaml:"components,omitempty"`
	Train      *metrics.Values    `json:"train,omitempty" yaml:"train,omitempty"`
	Test       *metrics.Values    `json:"test,omitempty" yaml:"test,omitempty"`
}

// Threshold is a stored threshold comparison row.
type Threshold struct {
	Candidate string          `json:"candidate" yaml:"candidate"`
	Prior     float64         `json:"prior" yaml:"prior"`
	Tau       float64         `json:"tau" yaml:"tau"`
	Metrics   *metrics.Values `json:"metrics" yaml:"metrics"`
}

// EstimatorSummary aggregates final test metrics per estimator and label frequency.
type EstimatorSummary struct {
	Estimator      string  `json:"estimator" yaml:"estimator"`
	LabelFrequency float64 `json:"label_frequency" yaml:"label_frequency"`
	Runs           int     `json:"runs" yaml:"runs"`
	Accuracy       float64 `json:"accuracy" yaml:"accuracy"`
	F1             float64 `json:"f1" yaml:"f1"`
}

// GetRuns lists the most recent runs, optionally for one estimator.
func GetRuns(db *sql.DB, estimator *string, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}

	rows, err := db.Query(rebind(db, selectRunsSQL), estimator, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return list, nil
}

// GetRun returns a single run or ErrNotFound.
func GetRun(db *sql.DB, id int64) (*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	rows, err := db.Query(rebind(db, selectRunSQL), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query run %d: %w", id, err)
		}
		return nil, errors.Wrapf(ErrNotFound, "run %d", id)
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		r       Run
		seed    int64
		started string
		ms      int64
	)
	if err := rows.Scan(&r.ID, &r.Name, &r.Estimator, &r.Dataset, &r.LabelFrequency,
		&seed, &r.Prior, &started, &ms, &r.TestAccuracy, &r.TestF1); err != nil {
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}
	r.Seed = uint64(seed)
	r.Duration = time.Duration(ms) * time.Millisecond
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q for run %d: %w", started, r.ID, err)
	}
	r.Started = t
	return &r, nil
}

// GetEpochs returns every epoch of a run with its components and metrics.
func GetEpochs(db *sql.DB, runID int64) ([]*Epoch, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(rebind(db, selectEpochsSQL), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	defer rows.Close()

	list := make([]*Epoch, 0)
	byEpoch := map[int]*Epoch{}
	for rows.Next() {
		e := &Epoch{}
		if err := rows.Scan(&e.Epoch, &e.TrainLoss, &e.TestLoss, &e.Degenerate); err != nil {
			return nil, fmt.Errorf("failed to scan epoch row: %w", err)
		}
		list = append(list, e)
		byEpoch[e.Epoch] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate epochs: %w", err)
	}

	if err := loadComponents(db, runID, byEpoch); err != nil {
		return nil, err
	}
	if err := loadMetrics(db, runID, byEpoch); err != nil {
		return nil, err
	}
	return list, nil
}

func loadComponents(db *sql.DB, runID int64, byEpoch map[int]*Epoch) error {
	rows, err := db.Query(rebind(db, selectComponentsSQL), runID)
	if err != nil {
		return fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			epoch int
			name  string
			value float64
		)
		if err := rows.Scan(&epoch, &name, &value); err != nil {
			return fmt.Errorf("failed to scan component row: %w", err)
		}
		e, ok := byEpoch[epoch]
		if !ok {
			continue
		}
		if e.Components == nil {
			e.Components = map[string]float64{}
		}
		e.Components[name] = value
	}
	return rows.Err()
}

func loadMetrics(db *sql.DB, runID int64, byEpoch map[int]*Epoch) error {
	rows, err := db.Query(rebind(db, selectMetricsSQL), runID)
	if err != nil {
		return fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			epoch int
			split string
			m     metrics.Values
		)
		if err := rows.Scan(&epoch, &split, &m.Accuracy, &m.Precision, &m.Recall,
			&m.F1, &m.AUC, &m.Positive, &m.Count); err != nil {
			return fmt.Errorf("failed to scan metric row: %w", err)
		}
		e, ok := byEpoch[epoch]
		if !ok {
			continue
		}
		switch split {
		case SplitTrain:
			e.Train = &m
		case SplitTest:
			e.Test = &m
		}
	}
	return rows.Err()
}

// GetPriorEstimates returns the new-data prior estimates of a run.
func GetPriorEstimates(db *sql.DB, runID int64) ([]experiment.Estimate, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(rebind(db, selectPriorEstimatesSQL), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior estimates: %w", err)
	}
	defer rows.Close()

	list := make([]experiment.Estimate, 0)
	for rows.Next() {
		var e experiment.Estimate
		if err := rows.Scan(&e.Solver, &e.Prior, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan prior estimate row: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// GetThresholds returns the threshold comparison of a run, ordered by tau.
func GetThresholds(db *sql.DB, runID int64) ([]*Threshold, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(rebind(db, selectThresholdsSQL), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	list := make([]*Threshold, 0)
	for rows.Next() {
		t := &Threshold{Metrics: &metrics.Values{}}
		m := t.Metrics
		if err := rows.Scan(&t.Candidate, &t.Prior, &t.Tau, &m.Accuracy, &m.Precision,
			&m.Recall, &m.F1, &m.AUC, &m.Positive); err != nil {
			return nil, fmt.Errorf("failed to scan threshold row: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// GetEstimatorSummary averages final test metrics per estimator and label frequency.
func GetEstimatorSummary(db *sql.DB) ([]*EstimatorSummary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectEstimatorSummarySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimator summary: %w", err)
	}
	defer rows.Close()

	list := make([]*EstimatorSummary, 0)
	for rows.Next() {
		s := &EstimatorSummary{}
		if err := rows.Scan(&s.Estimator, &s.LabelFrequency, &s.Runs, &s.Accuracy, &s.F1); err != nil {
			return nil, fmt.Errorf("failed to scan estimator summary row: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func DeleteRun(db *sql.DB, id int64) error {
	if db == nil {
		return errDBNotInitialized
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error starting delete tx: %w", err)
	}
	var deleted int64
	for _, q := range deleteRunSQL {
		res, err := tx.Exec(rebind(db, q), id)
		if err != nil {
			rollbackTransaction(tx)
			return fmt.Errorf("error deleting run %d: %w", id, err)
		}
		deleted, _ = res.RowsAffected()
	}
	if deleted == 0 {
		rollbackTransaction(tx)
		return errors.Wrapf(ErrNotFound, "run %d", id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing delete tx: %w", err)
	}
	return nil
}
