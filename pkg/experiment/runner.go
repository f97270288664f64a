package experiment

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/dataset"
	"github.com/mchmarny/nnpu/pkg/metrics"
	"github.com/mchmarny/nnpu/pkg/model"
	"github.com/mchmarny/nnpu/pkg/risk"
	"github.com/mchmarny/nnpu/pkg/threshold"
)

// Runner trains a linear scorer with a PU risk estimator.
type Runner struct {
	cfg   *config.Config
	train *dataset.Dataset
	test  *dataset.Dataset
	prior float64
	model *model.Linear
	opt   *model.Adam
	log   *slog.Logger
}

// New validates cfg and prepares the data.
func New(cfg *config.Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	train, test, err := LoadData(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithData(cfg, train, test)
}

// NewWithData builds a runner over already labeled data.
func NewWithData(cfg *config.Config, train, test *dataset.Dataset) (*Runner, error) {
	if train.Len() == 0 || test.Len() == 0 {
		return nil, errors.New("train and test sets must not be empty")
	}

	p := train.Prior()
	if train.Synthetic {
		p = cfg.Data.Prior
	}
	if p <= 0 || p >= 1 {
		return nil, errors.Errorf("training prior must be in (0, 1), got %v", p)
	}

	opt := model.NewAdam(cfg.LearningRate)
	opt.WeightDecay = cfg.WeightDecay

	return &Runner{
		cfg:   cfg,
		train: train,
		test:  test,
		prior: p,
		model: model.NewLinear(train.Dim(), rand.New(rand.NewPCG(cfg.Seed, 0))),
		opt:   opt,
		log:   slog.Default().With("run", cfg.Name),
	}, nil
}

// Prior returns the class prior the estimators are trained with.
func (r *Runner) Prior() float64 {
	return r.prior
}

// Model returns the scorer being trained.
func (r *Runner) Model() *model.Linear {
	return r.model
}

// Run trains for the configured epochs and evaluates on new data when enabled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		Name:           r.cfg.Name,
		Estimator:      r.cfg.Estimator,
		Dataset:        r.train.Name,
		LabelFrequency: r.cfg.LabelFrequency,
		Seed:           r.cfg.Seed,
		Prior:          r.prior,
		Started:        time.Now().UTC(),
		Epochs:         make([]EpochReport, 0, r.cfg.Epochs),
	}

	for epoch := 1; epoch <= r.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		e, err := r.Epoch(ctx, epoch)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		rep.Epochs = append(rep.Epochs, *e)
		r.log.Info("epoch",
			"n", epoch,
			"train_loss", e.TrainLoss,
			"test_loss", e.TestLoss,
			"test_acc", e.Test.Accuracy,
			"test_f1", e.Test.F1)
	}

	if r.cfg.Shift.Enabled {
		d, err := LoadShiftData(r.cfg)
		if err != nil {
			return nil, err
		}
		known := 0.0
		if d.Synthetic {
			known = r.cfg.Shift.Prior
		}
		if rep.Shift, err = r.EvaluateShift(d, known); err != nil {
			return nil, errors.Wrap(err, "evaluating new data")
		}
	}

	rep.Duration = time.Since(rep.Started)
	return rep, nil
}

// Epoch runs one pass over the training set with a fresh estimator and
// history, then scores both sets.
func (r *Runner) Epoch(ctx context.Context, epoch int) (*EpochReport, error) {
	hist := risk.NewHistory(r.cfg.HistoryLimit)
	est, err := NewEstimator(r.cfg, r.prior, hist)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(epoch)))
	var losses []float64
	for _, b := range r.train.Batches(r.cfg.TrainBatchSize, rng) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loss, err := r.step(est, b)
		if err != nil {
			return nil, err
		}
		losses = append(losses, loss)
	}

	e := &EpochReport{
		Epoch:      epoch,
		TrainLoss:  stat.Mean(losses, nil),
		Degenerate: hist.Degenerate(),
	}
	if hist.Len() > 0 {
		e.Components = hist.Means()
	}

	if e.Train, _, err = r.evaluate(r.train, nil); err != nil {
		return nil, errors.Wrap(err, "train metrics")
	}
	testEst, err := NewEstimator(r.cfg, r.prior, nil)
	if err != nil {
		return nil, err
	}
	if e.Test, e.TestLoss, err = r.evaluate(r.test, testEst); err != nil {
		return nil, errors.Wrap(err, "test metrics")
	}
	return e, nil
}

func (r *Runner) step(est risk.Estimator, b dataset.Batch) (float64, error) {
	scores, err := r.model.Score(b.Features)
	if err != nil {
		return 0, err
	}
	loss, err := est.Compute(scores, b.Labels)
	if err != nil {
		return 0, errors.Wrap(err, "computing loss")
	}
	grad, err := est.Gradient(scores, b.Labels)
	if err != nil {
		return 0, errors.Wrap(err, "computing gradient")
	}
	pg, err := r.model.Backward(b.Features, grad)
	if err != nil {
		return 0, err
	}
	r.opt.Step(r.model.Params, pg)
	return loss, nil
}

// evaluate scores d in eval batches and classifies at the zero-logit
// threshold. When est is set, its mean batch loss is returned as well.
func (r *Runner) evaluate(d *dataset.Dataset, est risk.Estimator) (*metrics.Values, float64, error) {
	var (
		targets []int
		scores  []float64
		losses  []float64
	)
	for _, b := range d.Batches(r.cfg.EvalBatchSize, nil) {
		s, err := r.model.Score(b.Features)
		if err != nil {
			return nil, 0, err
		}
		if est != nil {
			l, err := est.Compute(s, b.Labels)
			if err != nil {
				return nil, 0, err
			}
			losses = append(losses, l)
		}
		scores = append(scores, s...)
		targets = append(targets, b.Classes...)
	}

	preds, err := threshold.Classify(scores, 1)
	if err != nil {
		return nil, 0, err
	}
	v, err := metrics.Compute(targets, preds)
	if err != nil {
		return nil, 0, err
	}
	var loss float64
	if len(losses) > 0 {
		loss = stat.Mean(losses, nil)
	}
	return v, loss, nil
}
