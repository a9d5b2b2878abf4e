package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elasql/txn-estimator/estimator/dataset"
	"github.com/elasql/txn-estimator/estimator/model"
	"github.com/elasql/txn-estimator/internal/testutil"
)

func TestLoad_TOMLKeepsDefaultsAndIgnoresUnknownTables(t *testing.T) {
	// GIVEN a config.toml carrying a preprocessor section this tool does not read
	path := testutil.WriteFile(t, t.TempDir(), "config.toml", `
[global]
server_num = 4
training_data_ratio = 0.7
outlier_std_threshold = 3.0
warm_up_end_time = 90000

[preprocessor]
warmup_time = 90

[output]
metrics_file = "estimator.prom"
`)

	// WHEN loaded
	cfg, err := Load(path)
	require.NoError(t, err)

	// THEN file values win and missing keys keep their defaults
	assert.Equal(t, 4, cfg.Global.ServerNum)
	assert.Equal(t, 0.7, cfg.Global.TrainingDataRatio)
	assert.Equal(t, 3.0, cfg.Global.OutlierStdThreshold)
	assert.Equal(t, dataset.Window{WarmUpEndTime: 90000}, cfg.Global.Window())
	assert.True(t, cfg.Estimator.EvictResolved)
	assert.Equal(t, model.DefaultRidge, cfg.Model.Ridge)
	assert.Equal(t, ".", cfg.Output.ReportDir)
	assert.Equal(t, "estimator.prom", cfg.Output.MetricsFile)
}

func TestLoad_YAML(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "config.yaml", `
global:
  server_num: 2
  data_end_time: 500
estimator:
  evict_resolved: false
model:
  ridge: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Global.ServerNum)
	assert.Equal(t, int64(500), cfg.Global.DataEndTime)
	assert.False(t, cfg.Estimator.EvictResolved)
	assert.Equal(t, 0.5, cfg.Model.Ridge)
	assert.Equal(t, 0.8, cfg.Global.TrainingDataRatio)
}

func TestLoad_YAMLRejectsUnknownKeys(t *testing.T) {
	// GIVEN a typo in a YAML key
	path := testutil.WriteFile(t, t.TempDir(), "config.yml", `
global:
  server_num: 2
  trainig_data_ratio: 0.5
`)

	_, err := Load(path)

	assert.ErrorContains(t, err, "trainig_data_ratio")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"missing server count", "a.toml", "[model]\nridge = 1.0\n", "server_num"},
		{"bad toml", "b.toml", "[global\n", "parsing"},
		{"ratio out of range", "c.toml", "[global]\nserver_num = 1\ntraining_data_ratio = 1.5\n", "training_data_ratio"},
		{"negative threshold", "d.toml", "[global]\nserver_num = 1\noutlier_std_threshold = -1.0\n", "outlier_std_threshold"},
		{"empty window", "e.toml", "[global]\nserver_num = 1\nwarm_up_end_time = 10\ndata_end_time = 10\n", "data_end_time"},
		{"negative ridge", "f.yaml", "global:\n  server_num: 1\nmodel:\n  ridge: -2\n", "ridge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(testutil.WriteFile(t, dir, tt.file, tt.content))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := Load(dir + "/missing.toml")
	assert.Error(t, err)
}

func TestDefault_NeedsServerCount(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Global.ServerNum = 1
	assert.NoError(t, cfg.Validate())
}
