package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/elasql/txn-estimator/estimator/config"
)

// testCmd evaluates saved models on a testing data set
var testCmd = &cobra.Command{
	Use:   "test DATA_SET_DIR MODEL_DB",
	Short: "Test saved operation unit models on a data set",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		if err := runTest(cfg, args[0], args[1]); err != nil {
			logrus.Fatalf("Testing failed: %v", err)
		}
	},
}

func runTest(cfg config.Config, dataDir, modelPath string) error {
	_, log := newRun("test")
	log.Info("Loading the data set and the models...")

	sets, err := loadOuDataSets(cfg, dataDir)
	if err != nil {
		return err
	}
	set, err := loadModels(modelPath, cfg.Global.ServerNum)
	if err != nil {
		return err
	}
	log.Info("All the data and models are loaded")

	path, err := reportPath(cfg, testingReportFile)
	if err != nil {
		return err
	}
	if err := writeOuReport(path, sets, set); err != nil {
		return err
	}
	log.WithField("report", path).Info("Testing completed")
	return nil
}
