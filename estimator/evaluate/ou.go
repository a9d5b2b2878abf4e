package evaluate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/report"
)

// OuSource is one server's OU data set. dataset.OuDataSet implements it.
type OuSource interface {
	ServerID() int
	Size() int
	Features() []estimator.FeatureRecord
	Labels(ou string) []float64
	LabelMean(ou string) float64
	LabelStd(ou string) float64
}

// OuModels evaluates the predictor of every OU on one server's data set and
// writes one row per OU to sink.
func OuModels(ds OuSource, p estimator.Predictor, sink RowSink) ([]report.OuRow, error) {
	serverID := ds.ServerID()
	features := ds.Features()
	rows := make([]report.OuRow, 0, len(estimator.OUNames))
	for _, ou := range estimator.OUNames {
		labels := ds.Labels(ou)
		predictions := make([]float64, len(features))
		for i, rec := range features {
			v, err := p.Predict(ou, serverID, rec)
			if err != nil {
				return nil, fmt.Errorf("evaluate: server %d row %d: %w", serverID, i, err)
			}
			predictions[i] = v
		}
		importances, err := p.Importance(ou, serverID)
		if err != nil {
			return nil, fmt.Errorf("evaluate: server %d: %w", serverID, err)
		}
		row := report.OuRow{
			ServerID:    serverID,
			OU:          ou,
			Size:        ds.Size(),
			Mean:        ds.LabelMean(ou),
			Std:         ds.LabelStd(ou),
			MAE:         MeanAbsoluteError(predictions, labels),
			MRE:         MeanRelativeError(predictions, labels),
			Importances: importances,
		}
		if err := sink.Write(row); err != nil {
			return nil, fmt.Errorf("evaluate: writing server %d %s: %w", serverID, ou, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MeanAbsoluteError returns mean(|p - y|); NaN for empty input.
func MeanAbsoluteError(predictions, labels []float64) float64 {
	if len(predictions) == 0 {
		return math.NaN()
	}
	errs := make([]float64, len(predictions))
	for i := range predictions {
		errs[i] = math.Abs(predictions[i] - labels[i])
	}
	return stat.Mean(errs, nil)
}

// MeanRelativeError returns the sum of |p - y| / y over nonzero labels,
// divided by the number of all rows; NaN for empty input.
func MeanRelativeError(predictions, labels []float64) float64 {
	if len(predictions) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := range predictions {
		if labels[i] == 0 {
			continue
		}
		sum += math.Abs(predictions[i]-labels[i]) / labels[i]
	}
	return sum / float64(len(predictions))
}
