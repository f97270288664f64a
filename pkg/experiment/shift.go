package experiment

import (
	"github.com/pkg/errors"

	"github.com/mchmarny/nnpu/pkg/dataset"
	"github.com/mchmarny/nnpu/pkg/metrics"
	"github.com/mchmarny/nnpu/pkg/prior"
	"github.com/mchmarny/nnpu/pkg/threshold"
)

const TrueCandidate = "true"

// EvaluateShift scores new data, estimates its class prior from the model
// scores of the labeled training positives and compares the adjusted
// thresholds. knownPrior is used as an extra candidate when set.
func (r *Runner) EvaluateShift(d *dataset.Dataset, knownPrior float64) (*ShiftReport, error) {
	if d.Len() == 0 {
		return nil, errors.New("new data is empty")
	}
	labeled := r.train.Labeled()
	if len(labeled) == 0 {
		return nil, errors.New("training set has no labeled positives")
	}

	pos := make([][]float64, len(labeled))
	for i, e := range labeled {
		pos[i] = e.Features
	}
	posScores, err := r.model.Score(pos)
	if err != nil {
		return nil, err
	}

	all := d.All()
	scores, err := r.model.Score(all.Features)
	if err != nil {
		return nil, err
	}

	rep := &ShiftReport{
		TrainPrior: r.prior,
		TruePrior:  knownPrior,
		Size:       d.Len(),
	}
	baseline, err := threshold.Classify(scores, 1)
	if err != nil {
		return nil, err
	}
	if rep.Baseline, err = metrics.Compute(all.Classes, baseline); err != nil {
		return nil, err
	}

	var candidates []threshold.Candidate
	if knownPrior > 0 {
		candidates = append(candidates, threshold.Candidate{Name: TrueCandidate, Prior: knownPrior})
	}
	for _, name := range r.cfg.Shift.Solvers {
		est := Estimate{Solver: name}
		s, err := prior.Lookup(name)
		if err == nil {
			est.Prior, err = prior.New(s).Estimate(posScores, scores)
		}
		if err != nil {
			r.log.Warn("prior estimation failed", "solver", name, "error", err)
			est.Error = err.Error()
			rep.Estimates = append(rep.Estimates, est)
			continue
		}
		r.log.Info("prior estimated", "solver", name, "prior", est.Prior)
		rep.Estimates = append(rep.Estimates, est)
		candidates = append(candidates, threshold.Candidate{Name: name, Prior: est.Prior})
	}

	if rep.Outcomes, err = threshold.Compare(r.prior, candidates, scores, all.Classes); err != nil {
		return nil, err
	}
	return rep, nil
}
