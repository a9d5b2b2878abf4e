package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/config"
	"github.com/elasql/txn-estimator/estimator/dataset"
	"github.com/elasql/txn-estimator/estimator/evaluate"
	"github.com/elasql/txn-estimator/estimator/metrics"
	"github.com/elasql/txn-estimator/estimator/model"
	"github.com/elasql/txn-estimator/estimator/report"
)

// Report file names, written under output.report_dir.
const (
	trainingReportFile = "training-report.csv"
	holdoutReportFile  = "holdout-report.csv"
	testingReportFile  = "testing-report.csv"
	sumMaxReportFile   = "sum-max-report.csv"
)

// newRun tags every log line of one command invocation with a fresh run id.
func newRun(command string) (string, *logrus.Entry) {
	runID := uuid.NewString()
	return runID, logrus.WithFields(logrus.Fields{"run": runID, "cmd": command})
}

func mustLoadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// reportPath returns the path of a report file, creating the report directory.
func reportPath(cfg config.Config, name string) (string, error) {
	if err := os.MkdirAll(cfg.Output.ReportDir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	return filepath.Join(cfg.Output.ReportDir, name), nil
}

func loadOuDataSets(cfg config.Config, dataDir string) ([]*dataset.OuDataSet, error) {
	return dataset.LoadOuDataSets(dataDir, cfg.Global.ServerNum, cfg.Global.Window(), cfg.Global.OutlierStdThreshold)
}

// writeOuReport evaluates p on every data set and writes one OU report.
func writeOuReport(path string, sets []*dataset.OuDataSet, p estimator.Predictor) (err error) {
	if len(sets) == 0 {
		return fmt.Errorf("no data sets for %s", path)
	}
	w, err := report.Create(path, report.OuFormat(sets[0].Schema().Names()))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, w.Close()) }()
	for _, ds := range sets {
		if _, err := evaluate.OuModels(ds, p, w); err != nil {
			return err
		}
	}
	return nil
}

// loadModels reads the model set of every configured server from the bolt file.
func loadModels(path string, serverCount int) (_ *model.ServerModelSet, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model database: %w", err)
	}
	store, err := model.OpenStore(path)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	return store.Load(serverCount)
}

func writeMetrics(cfg config.Config, rec *metrics.Recorder) error {
	if cfg.Output.MetricsFile == "" {
		return nil
	}
	return rec.WriteTextfile(cfg.Output.MetricsFile)
}
