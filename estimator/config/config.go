// Package config loads the estimator configuration from a TOML or YAML file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/elasql/txn-estimator/estimator/dataset"
	"github.com/elasql/txn-estimator/estimator/model"
)

// Config is the full configuration file.
type Config struct {
	Global    Global    `toml:"global" yaml:"global"`
	Estimator Estimator `toml:"estimator" yaml:"estimator"`
	Model     Model     `toml:"model" yaml:"model"`
	Output    Output    `toml:"output" yaml:"output"`
}

// Global describes the data sets.
type Global struct {
	ServerNum           int     `toml:"server_num" yaml:"server_num"`
	TrainingDataRatio   float64 `toml:"training_data_ratio" yaml:"training_data_ratio"`
	OutlierStdThreshold float64 `toml:"outlier_std_threshold" yaml:"outlier_std_threshold"` // 0 keeps every row
	WarmUpEndTime       int64   `toml:"warm_up_end_time" yaml:"warm_up_end_time"`
	DataEndTime         int64   `toml:"data_end_time" yaml:"data_end_time"` // 0 means no upper bound
}

// Window returns the start-time window of OU data sets.
func (g Global) Window() dataset.Window {
	return dataset.Window{WarmUpEndTime: g.WarmUpEndTime, DataEndTime: g.DataEndTime}
}

type Estimator struct {
	// EvictResolved drops a resolved end time once all its dependents committed.
	EvictResolved bool `toml:"evict_resolved" yaml:"evict_resolved"`
}

type Model struct {
	Ridge float64 `toml:"ridge" yaml:"ridge"`
}

type Output struct {
	ReportDir   string `toml:"report_dir" yaml:"report_dir"`
	MetricsFile string `toml:"metrics_file" yaml:"metrics_file"` // empty disables the textfile
}

// Default returns the configuration used for every key a file leaves out.
// ServerNum has no usable default and must be set.
func Default() Config {
	return Config{
		Global: Global{
			TrainingDataRatio: 0.8,
		},
		Estimator: Estimator{EvictResolved: true},
		Model:     Model{Ridge: model.DefaultRidge},
		Output:    Output{ReportDir: "."},
	}
}

// Load reads path on top of Default. Files ending in .yaml or .yml are decoded
// strictly as YAML; anything else is TOML, where unknown keys only warn so the
// sections used by the preprocessing scripts can share the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logrus.Warnf("config: %s: ignoring unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no command can run with.
func (c Config) Validate() error {
	switch {
	case c.Global.ServerNum < 1:
		return fmt.Errorf("server_num must be >= 1, got %d", c.Global.ServerNum)
	case c.Global.TrainingDataRatio <= 0 || c.Global.TrainingDataRatio > 1:
		return fmt.Errorf("training_data_ratio must be in (0, 1], got %g", c.Global.TrainingDataRatio)
	case c.Global.OutlierStdThreshold < 0:
		return fmt.Errorf("outlier_std_threshold must be >= 0, got %g", c.Global.OutlierStdThreshold)
	case c.Global.DataEndTime != 0 && c.Global.DataEndTime <= c.Global.WarmUpEndTime:
		return fmt.Errorf("data_end_time %d must be after warm_up_end_time %d",
			c.Global.DataEndTime, c.Global.WarmUpEndTime)
	case c.Model.Ridge < 0:
		return fmt.Errorf("ridge must be >= 0, got %g", c.Model.Ridge)
	}
	return nil
}
