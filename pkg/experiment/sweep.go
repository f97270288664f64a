package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mchmarny/nnpu/pkg/config"
)

// Plan expands base into one config per label frequency and seed pair.
func Plan(base *config.Config, freqs []float64, seeds []uint64) []*config.Config {
	if len(freqs) == 0 {
		freqs = []float64{base.LabelFrequency}
	}
	if len(seeds) == 0 {
		seeds = []uint64{base.Seed}
	}

	out := make([]*config.Config, 0, len(freqs)*len(seeds))
	for _, c := range freqs {
		for _, s := range seeds {
			cfg := *base
			cfg.Shift.Solvers = slices.Clone(base.Shift.Solvers)
			cfg.LabelFrequency = c
			cfg.Seed = s
			cfg.Name = fmt.Sprintf("%s-%s-c%g-s%d", base.Name, base.Estimator, c, s)
			if base.OutputDir != "" {
				cfg.OutputDir = filepath.Join(base.OutputDir, cfg.Name)
			}
			out = append(out, &cfg)
		}
	}
	return out
}

// Sweep runs every config with at most parallel runs in flight. Reports are
// returned in the order of cfgs. The first failure cancels the rest.
func Sweep(ctx context.Context, cfgs []*config.Config, parallel int) ([]*Report, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("nothing to run")
	}
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	reports := make([]*Report, len(cfgs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, cfg := range cfgs {
		g.Go(func() error {
			r, err := New(cfg)
			if err != nil {
				return errors.Wrapf(err, "preparing %s", cfg.Name)
			}
			rep, err := r.Run(ctx)
			if err != nil {
				return errors.Wrapf(err, "running %s", cfg.Name)
			}
			if cfg.OutputDir != "" {
				if err := WriteArtifacts(cfg.OutputDir, rep); err != nil {
					return err
				}
			}
			slog.Debug("run done", "name", cfg.Name, "duration", rep.Duration)
			reports[i] = rep
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
