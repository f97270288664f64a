package experiment

import (
	"github.com/pkg/errors"

	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/risk"
)

// NewEstimator builds the risk estimator named in cfg. The recorder is only
// attached to the sigmoid-surrogate family. DRPU weights its correction by
// prior.
func NewEstimator(cfg *config.Config, prior float64, rec risk.Recorder) (risk.Estimator, error) {
	if risk.IsDRPU(cfg.Estimator) {
		return risk.NewDRPU(risk.DRConfig{
			Prior: prior,
			Beta:  cfg.Beta,
			Gamma: cfg.Gamma,
		})
	}

	v, err := risk.ParseVariant(cfg.Estimator)
	if err != nil {
		return nil, err
	}

	var s risk.Surrogate
	switch cfg.Surrogate {
	case config.SurrogateLogistic:
		s = risk.Logistic{}
	case config.SurrogateSigmoid, "":
		s = risk.Sigmoid{}
	default:
		return nil, errors.Wrapf(risk.ErrConfiguration, "unknown surrogate: %s", cfg.Surrogate)
	}

	var opts []risk.Option
	if rec != nil {
		opts = append(opts, risk.WithRecorder(rec))
	}
	return risk.New(risk.Config{
		Prior:     prior,
		Surrogate: s,
		Variant:   v,
		Beta:      cfg.Beta,
		Gamma:     cfg.Gamma,
	}, opts...)
}
