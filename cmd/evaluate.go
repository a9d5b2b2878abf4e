package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/config"
	"github.com/elasql/txn-estimator/estimator/dataset"
	"github.com/elasql/txn-estimator/estimator/evaluate"
	"github.com/elasql/txn-estimator/estimator/metrics"
	"github.com/elasql/txn-estimator/estimator/model"
	"github.com/elasql/txn-estimator/estimator/report"
	"github.com/elasql/txn-estimator/estimator/summax"
)

var baseline bool // Predict mean OU latencies instead of loading models

// evaluateCmd replays a trace through the sum-max estimator
var evaluateCmd = &cobra.Command{
	Use:   "evaluate DATA_SET_DIR [MODEL_DB]",
	Short: "Replay a trace through the sum-max estimator",
	Long: "Estimates the latency of every transaction on every server in transaction " +
		"order, commits its recorded route, writes sum-max-report.csv and prints a " +
		"calibration summary.",
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		modelPath := ""
		if len(args) == 2 && !baseline {
			modelPath = args[1]
		}
		if modelPath == "" && !baseline {
			logrus.Fatalf("MODEL_DB is required unless --baseline is set")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runEvaluate(ctx, cfg, args[0], modelPath, os.Stdout); err != nil {
			logrus.Fatalf("Evaluation failed: %v", err)
		}
	},
}

// runEvaluate runs the sum-max evaluation and writes the calibration summary
// to out. An empty modelPath selects the mean latency baseline.
func runEvaluate(ctx context.Context, cfg config.Config, dataDir, modelPath string, out io.Writer) error {
	runID, log := newRun("evaluate")

	ds, err := dataset.LoadTotalLatencyDataSet(dataDir, cfg.Global.ServerNum)
	if err != nil {
		return err
	}
	p, err := predictor(cfg, dataDir, modelPath)
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	opts := []summax.Option{summax.WithObserver(rec)}
	if cfg.Estimator.EvictResolved {
		opts = append(opts, summax.WithDependentCounts(ds.Graph().DependentCounts()))
	}
	est, err := summax.New(p, cfg.Global.ServerNum, opts...)
	if err != nil {
		return err
	}

	path, err := reportPath(cfg, sumMaxReportFile)
	if err != nil {
		return err
	}
	res, err := sumMax(ctx, ds, est, rec, path)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"evaluated": res.Evaluated,
		"gaps":      res.GapsSkipped,
		"resolved":  est.Resolved(),
	}).Info("Evaluation completed")

	if err := writeMetrics(cfg, rec); err != nil {
		return err
	}
	if res.Evaluated == 0 {
		log.Warn("No transaction was evaluated, skipping calibration")
		return nil
	}
	cal, err := report.Calibrate(res.Rows)
	if err != nil {
		return err
	}
	cal.RunID = runID
	return cal.WriteYAML(out)
}

func predictor(cfg config.Config, dataDir, modelPath string) (estimator.Predictor, error) {
	if modelPath != "" {
		return loadModels(modelPath, cfg.Global.ServerNum)
	}
	sets, err := loadOuDataSets(cfg, dataDir)
	if err != nil {
		return nil, err
	}
	for serverID, ds := range sets {
		sets[serverID], _ = ds.TrainTestSplit(cfg.Global.TrainingDataRatio)
	}
	logrus.Info("Using the mean latency baseline")
	return model.NewMeanPredictor(sets)
}

func sumMax(ctx context.Context, ds *dataset.TotalLatencyDataSet, est *summax.Estimator, rec *metrics.Recorder, path string) (_ evaluate.Result, err error) {
	w, err := report.Create(path, report.SumMaxFormat(ds.ServerCount()))
	if err != nil {
		return evaluate.Result{}, err
	}
	defer func() { err = multierr.Append(err, w.Close()) }()
	res, err := evaluate.SumMax(ctx, ds, est, w, evaluate.WithRecorder(rec), evaluate.WithRows())
	if err != nil {
		return res, fmt.Errorf("after %d transactions: %w", res.Evaluated, err)
	}
	return res, nil
}

func init() {
	evaluateCmd.Flags().BoolVar(&baseline, "baseline", false, "Predict the mean latency of each OU instead of loading MODEL_DB")
}
