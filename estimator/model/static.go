package model

import (
	"fmt"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/dataset"
)

// StaticPredictor returns a fixed latency per (OU, server), whatever the features.
// Missing entries predict 0. Serves as the mean-latency baseline of the
// evaluate command.
type StaticPredictor struct {
	serverCount int
	latencies   map[string][]float64
}

var _ estimator.Predictor = (*StaticPredictor)(nil)

// NewStaticPredictor creates a predictor over serverCount servers. Each value of
// latencies must hold one entry per server.
func NewStaticPredictor(serverCount int, latencies map[string][]float64) (*StaticPredictor, error) {
	if serverCount < 1 {
		return nil, fmt.Errorf("static predictor: server count must be >= 1, got %d", serverCount)
	}
	for ou, values := range latencies {
		if !estimator.IsValidOU(ou) {
			return nil, fmt.Errorf("static predictor: %w %q", estimator.ErrUnknownOU, ou)
		}
		if len(values) != serverCount {
			return nil, fmt.Errorf("static predictor: %s has %d values for %d servers", ou, len(values), serverCount)
		}
		if err := validateParams(ou, "latencies", values); err != nil {
			return nil, err
		}
	}
	return &StaticPredictor{serverCount: serverCount, latencies: latencies}, nil
}

// Predict implements estimator.Predictor.
func (p *StaticPredictor) Predict(ou string, serverID int, _ estimator.FeatureRecord) (float64, error) {
	if !estimator.IsValidOU(ou) {
		return 0, fmt.Errorf("static predictor: %w %q", estimator.ErrUnknownOU, ou)
	}
	if serverID < 0 || serverID >= p.serverCount {
		return 0, fmt.Errorf("static predictor: server %d of %d: %w", serverID, p.serverCount, estimator.ErrServerCount)
	}
	if values, ok := p.latencies[ou]; ok {
		return values[serverID], nil
	}
	return 0, nil
}

// Importance implements estimator.Predictor. Static latencies ignore every feature.
func (p *StaticPredictor) Importance(string, int) ([]float64, error) {
	return nil, nil
}

// NewMeanPredictor builds a baseline that predicts, for every server, the mean
// observed latency of each OU in that server's data set. Empty data sets predict 0.
func NewMeanPredictor(sets []*dataset.OuDataSet) (*StaticPredictor, error) {
	latencies := make(map[string][]float64, len(estimator.OUNames))
	for _, ou := range estimator.OUNames {
		values := make([]float64, len(sets))
		for serverID, ds := range sets {
			if ds.ServerID() != serverID {
				return nil, fmt.Errorf("static predictor: data set %d belongs to server %d", serverID, ds.ServerID())
			}
			if ds.Size() > 0 {
				values[serverID] = ds.LabelMean(ou)
			}
		}
		latencies[ou] = values
	}
	return NewStaticPredictor(len(sets), latencies)
}
