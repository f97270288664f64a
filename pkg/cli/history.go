package cli

import (
	"context"

	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/data"
	"github.com/mchmarny/nnpu/pkg/experiment"
)

const (
	historyLimitDefault = 50
)

var (
	historyLimitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Limits number of runs returned",
		Value: historyLimitDefault,
	}

	runIDFlag = &urfave.IntFlag{
		Name:     "id",
		Usage:    "Run ID",
		Required: true,
	}
)

func newHistoryCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "history",
		Aliases: []string{"h"},
		Usage:   "Query stored runs",
		Commands: []*urfave.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List recent runs with their final test metrics",
				Action:  cmdHistoryList,
				Flags: fresh(
					&urfave.StringFlag{
						Name:  estimatorFlag.Name,
						Usage: "Only list runs of this estimator",
					},
					historyLimitFlag,
				),
			},
			{
				Name:    "show",
				Aliases: []string{"s"},
				Usage:   "Show a run with its epochs, prior estimates and thresholds",
				Action:  cmdHistoryShow,
				Flags:   fresh(runIDFlag),
			},
			{
				Name:   "summary",
				Usage:  "Average final test metrics per estimator and label frequency",
				Action: cmdHistorySummary,
			},
			{
				Name:   "delete",
				Usage:  "Delete a run",
				Action: cmdHistoryDelete,
				Flags:  fresh(runIDFlag),
			},
		},
	}
}

// RunDetail is the output of history show.
type RunDetail struct {
	Run        *data.Run             `json:"run" yaml:"run"`
	Epochs     []*data.Epoch         `json:"epochs" yaml:"epochs"`
	Estimates  []experiment.Estimate `json:"estimates,omitempty" yaml:"estimates,omitempty"`
	Thresholds []*data.Threshold     `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

func cmdHistoryList(ctx context.Context, cmd *urfave.Command) error {
	app, err := getConfig(ctx)
	if err != nil {
		return err
	}

	var estimator *string
	if cmd.IsSet(estimatorFlag.Name) {
		v := cmd.String(estimatorFlag.Name)
		estimator = &v
	}

	runs, err := data.GetRuns(app.DB, estimator, int(cmd.Int(historyLimitFlag.Name)))
	if err != nil {
		return err
	}
	return encode(cmd, runs)
}

func cmdHistoryShow(ctx context.Context, cmd *urfave.Command) error {
	app, err := getConfig(ctx)
	if err != nil {
		return err
	}
	id := int64(cmd.Int(runIDFlag.Name))

	d := &RunDetail{}
	if d.Run, err = data.GetRun(app.DB, id); err != nil {
		return err
	}
	if d.Epochs, err = data.GetEpochs(app.DB, id); err != nil {
		return err
	}
	if d.Estimates, err = data.GetPriorEstimates(app.DB, id); err != nil {
		return err
	}
	if d.Thresholds, err = data.GetThresholds(app.DB, id); err != nil {
		return err
	}
	return encode(cmd, d)
}

func cmdHistorySummary(ctx context.Context, cmd *urfave.Command) error {
	app, err := getConfig(ctx)
	if err != nil {
		return err
	}
	list, err := data.GetEstimatorSummary(app.DB)
	if err != nil {
		return err
	}
	return encode(cmd, list)
}

func cmdHistoryDelete(ctx context.Context, cmd *urfave.Command) error {
	app, err := getConfig(ctx)
	if err != nil {
		return err
	}
	id := int64(cmd.Int(runIDFlag.Name))
	if err := data.DeleteRun(app.DB, id); err != nil {
		return err
	}
	return encode(cmd, map[string]int64{"deleted": id})
}
