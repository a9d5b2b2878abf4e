package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/elasql/txn-estimator/estimator/config"
	"github.com/elasql/txn-estimator/estimator/dataset"
	"github.com/elasql/txn-estimator/estimator/model"
)

// trainCmd fits the OU models of every server and saves them
var trainCmd = &cobra.Command{
	Use:   "train DATA_SET_DIR MODEL_DB [EXTRA_DATA_SET_DIR...]",
	Short: "Train the operation unit latency models of every server",
	Long: "Fits one linear model per operation unit and server on the first " +
		"training_data_ratio of each server's data. Extra data set directories are " +
		"appended to the training data. Writes training-report.csv, holdout-report.csv " +
		"and the model database.",
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		dirs := append([]string{args[0]}, args[2:]...)
		if err := runTrain(cfg, dirs, args[1]); err != nil {
			logrus.Fatalf("Training failed: %v", err)
		}
	},
}

// runTrain trains on the union of the data sets in dirs and saves the models to modelPath.
func runTrain(cfg config.Config, dirs []string, modelPath string) error {
	_, log := newRun("train")
	log.Info("Loading and pre-processing data set...")

	var sets []*dataset.OuDataSet
	for _, dir := range dirs {
		loaded, err := loadOuDataSets(cfg, dir)
		if err != nil {
			return err
		}
		if sets == nil {
			sets = loaded
			continue
		}
		for serverID := range sets {
			if sets[serverID], err = sets[serverID].Union(loaded[serverID]); err != nil {
				return fmt.Errorf("merging %s: %w", dir, err)
			}
		}
	}
	log.Info("All data are loaded and processed.")

	trainSets := make([]*dataset.OuDataSet, len(sets))
	holdouts := make([]*dataset.OuDataSet, len(sets))
	servers := make([]*model.ServerModel, len(sets))
	holdoutRows := 0
	for serverID, ds := range sets {
		trainSets[serverID], holdouts[serverID] = ds.TrainTestSplit(cfg.Global.TrainingDataRatio)
		holdoutRows += holdouts[serverID].Size()

		log.Infof("Training models for server #%d (data set size: %d)...", serverID, trainSets[serverID].Size())
		sm, err := model.TrainServerModel(trainSets[serverID], cfg.Model.Ridge)
		if err != nil {
			return err
		}
		servers[serverID] = sm
	}
	set, err := model.NewServerModelSet(servers)
	if err != nil {
		return err
	}

	path, err := reportPath(cfg, trainingReportFile)
	if err != nil {
		return err
	}
	if err := writeOuReport(path, trainSets, set); err != nil {
		return err
	}
	if holdoutRows > 0 {
		if path, err = reportPath(cfg, holdoutReportFile); err != nil {
			return err
		}
		if err := writeOuReport(path, holdouts, set); err != nil {
			return err
		}
	}

	if err := saveModels(modelPath, set); err != nil {
		return err
	}
	log.WithField("models", modelPath).Info("Training completed")
	return nil
}

func saveModels(path string, set *model.ServerModelSet) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	store, err := model.OpenStore(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	return store.Save(set)
}
