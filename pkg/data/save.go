package data

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mchmarny/nnpu/pkg/experiment"
	"github.com/mchmarny/nnpu/pkg/metrics"
)

const (
	SplitTrain   = "train"
	SplitTest    = "test"
	SplitNewData = "new_data"

	insertRunSQL = `INSERT INTO run (name, estimator, dataset, label_frequency, seed, prior, started, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	insertEpochSQL = `INSERT INTO epoch (run_id, epoch, train_loss, test_loss, degenerate)
		VALUES (?, ?, ?, ?, ?)
	`

	insertComponentSQL = `INSERT INTO component (run_id, epoch, name, value)
		VALUES (?, ?, ?, ?)
	`

	insertMetricSQL = `INSERT INTO metric (run_id, epoch, split, accuracy, prec, recall, f1, auc, pos_fraction, n)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertPriorEstimateSQL = `INSERT INTO prior_estimate (run_id, solver, prior, error)
		VALUES (?, ?, ?, ?)
	`

	insertThresholdSQL = `INSERT INTO threshold (run_id, candidate, prior, tau, accuracy, prec, recall, f1, auc, pos_fraction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
)

// SaveReport stores a run with its epochs and new-data evaluation in a single
// transaction and returns the run id.
func SaveReport(db *sql.DB, r *experiment.Report) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}
	if r == nil {
		return 0, fmt.Errorf("report required")
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("error starting report tx: %w", err)
	}

	var id int64
	if err := tx.QueryRow(rebind(db, insertRunSQL),
		r.Name, r.Estimator, r.Dataset, r.LabelFrequency, int64(r.Seed), r.Prior,
		r.Started.UTC().Format(time.RFC3339Nano), r.Duration.Milliseconds(),
	).Scan(&id); err != nil {
		rollbackTransaction(tx)
		return 0, fmt.Errorf("error inserting run %s: %w", r.Name, err)
	}

	if err := saveEpochs(db, tx, id, r.Epochs); err != nil {
		rollbackTransaction(tx)
		return 0, err
	}
	if r.Shift != nil {
		if err := saveShift(db, tx, id, r.Shift); err != nil {
			rollbackTransaction(tx)
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing report tx: %w", err)
	}

	slog.Debug("saved run", "id", id, "name", r.Name, "epochs", len(r.Epochs))
	return id, nil
}

func saveEpochs(db *sql.DB, tx *sql.Tx, id int64, epochs []experiment.EpochReport) error {
	for _, e := range epochs {
		if _, err := tx.Exec(rebind(db, insertEpochSQL), id, e.Epoch, e.TrainLoss, e.TestLoss, e.Degenerate); err != nil {
			return fmt.Errorf("error inserting epoch %d: %w", e.Epoch, err)
		}
		for name, v := range e.Components {
			if _, err := tx.Exec(rebind(db, insertComponentSQL), id, e.Epoch, name, v); err != nil {
				return fmt.Errorf("error inserting component %s: %w", name, err)
			}
		}
		for split, m := range map[string]*metrics.Values{SplitTrain: e.Train, SplitTest: e.Test} {
			if err := saveMetric(db, tx, id, e.Epoch, split, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func saveMetric(db *sql.DB, tx *sql.Tx, id int64, epoch int, split string, m *metrics.Values) error {
	if m == nil {
		return nil
	}
	if _, err := tx.Exec(rebind(db, insertMetricSQL),
		id, epoch, split, m.Accuracy, m.Precision, m.Recall, m.F1, m.AUC, m.Positive, m.Count,
	); err != nil {
		return fmt.Errorf("error inserting %s metrics for epoch %d: %w", split, epoch, err)
	}
	return nil
}

func saveShift(db *sql.DB, tx *sql.Tx, id int64, s *experiment.ShiftReport) error {
	if err := saveMetric(db, tx, id, 0, SplitNewData, s.Baseline); err != nil {
		return err
	}
	for _, e := range s.Estimates {
		if _, err := tx.Exec(rebind(db, insertPriorEstimateSQL), id, e.Solver, e.Prior, e.Error); err != nil {
			return fmt.Errorf("error inserting prior estimate %s: %w", e.Solver, err)
		}
	}
	for _, o := range s.Outcomes {
		m := o.Metrics
		if m == nil {
			m = &metrics.Values{}
		}
		if _, err := tx.Exec(rebind(db, insertThresholdSQL),
			id, o.Name, o.Prior, o.Tau, m.Accuracy, m.Precision, m.Recall, m.F1, m.AUC, m.Positive,
		); err != nil {
			return fmt.Errorf("error inserting threshold %s: %w", o.Name, err)
		}
	}
	return nil
}
