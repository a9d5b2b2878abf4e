package estimator

// Predictor predicts per-OU latencies for a set of candidate servers.
// Implementations are expected to be synchronous and free of I/O.
type Predictor interface {
	// Predict returns the latency of operation unit ou for a transaction with
	// features rec, executed on server serverID.
	Predict(ou string, serverID int, rec FeatureRecord) (float64, error)

	// Importance returns one weight per feature column for the model behind
	// (ou, serverID). Only used for reporting.
	Importance(ou string, serverID int) ([]float64, error)
}

// SumPredictions adds Predict(ou, serverID, rec) over ous.
func SumPredictions(p Predictor, ous []string, serverID int, rec FeatureRecord) (float64, error) {
	var total float64
	for _, ou := range ous {
		v, err := p.Predict(ou, serverID, rec)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
