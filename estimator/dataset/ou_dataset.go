package dataset

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"github.com/elasql/txn-estimator/estimator"
)

// Window restricts OU data sets to transactions that started strictly between
// WarmUpEndTime and DataEndTime. A zero DataEndTime means no upper bound.
type Window struct {
	WarmUpEndTime int64
	DataEndTime   int64
}

// OuDataSet is the training data of one server: for every master transaction
// executed there, the server's feature record and the observed latency of each OU.
type OuDataSet struct {
	serverID            int
	schema              *estimator.FeatureSchema
	txNums              []int64
	features            [][]float64
	labels              map[string][]float64
	outlierStdThreshold float64
}

// LoadOuDataSets loads one OuDataSet per server from a data set directory.
func LoadOuDataSets(dir string, serverCount int, window Window, outlierStdThreshold float64) ([]*OuDataSet, error) {
	if serverCount < 1 {
		return nil, fmt.Errorf("dataset: server count must be >= 1, got %d", serverCount)
	}
	features, err := LoadCSV(filepath.Join(dir, FeatureFileName),
		KeepStartedWithin(window.WarmUpEndTime, window.DataEndTime))
	if err != nil {
		return nil, fmt.Errorf("dataset: loading features: %w", err)
	}
	sets := make([]*OuDataSet, serverCount)
	for serverID := range sets {
		labels, err := LoadCSV(filepath.Join(dir, LatencyFileName(serverID)), KeepMasters)
		if err != nil {
			return nil, fmt.Errorf("dataset: loading latencies of server %d: %w", serverID, err)
		}
		sets[serverID], err = JoinOuDataSet(serverID, serverCount, features, labels, outlierStdThreshold)
		if err != nil {
			return nil, err
		}
	}
	return sets, nil
}

// JoinOuDataSet joins the feature table with one server's master latency rows
// by transaction number. Latency rows without a feature row are dropped.
func JoinOuDataSet(serverID, serverCount int, features, labels *Table, outlierStdThreshold float64) (*OuDataSet, error) {
	if serverID < 0 || serverID >= serverCount {
		return nil, fmt.Errorf("dataset: server %d out of range [0, %d)", serverID, serverCount)
	}
	idCol, err := features.requireColumn(FieldID, TypeInt64)
	if err != nil {
		return nil, fmt.Errorf("dataset: feature table: %w", err)
	}
	names, inputs := inputColumns(features)
	schema, err := estimator.NewFeatureSchema(names)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	featureRows := make(map[int64]int, features.Len())
	for row := 0; row < features.Len(); row++ {
		featureRows[features.Int64At(row, idCol)] = row
	}

	labelID, err := labels.requireColumn(FieldID, TypeInt64)
	if err != nil {
		return nil, fmt.Errorf("dataset: latency table of server %d: %w", serverID, err)
	}
	ouCols := make(map[string]int, len(estimator.OUNames))
	for _, ou := range estimator.OUNames {
		if ouCols[ou], err = labels.requireColumn(ou, TypeFloat); err != nil {
			return nil, fmt.Errorf("dataset: latency table of server %d: %w", serverID, err)
		}
	}

	ds := &OuDataSet{
		serverID:            serverID,
		schema:              schema,
		labels:              make(map[string][]float64, len(estimator.OUNames)),
		outlierStdThreshold: outlierStdThreshold,
	}
	for row := 0; row < labels.Len(); row++ {
		txNum := labels.Int64At(row, labelID)
		frow, ok := featureRows[txNum]
		if !ok {
			continue
		}
		for _, in := range inputs {
			if in.typ == TypeFloatArray && len(features.ArrayAt(frow, in.col)) <= serverID {
				return nil, fmt.Errorf("dataset: tx %d: array feature %q has no slot for server %d",
					txNum, features.cols[in.col].Name, serverID)
			}
		}
		ds.txNums = append(ds.txNums, txNum)
		ds.features = append(ds.features, splitRow(features, inputs, frow, serverID))
		for ou, col := range ouCols {
			ds.labels[ou] = append(ds.labels[ou], labels.FloatAt(row, col))
		}
	}
	return ds, nil
}

// ServerID returns the server the data set describes.
func (ds *OuDataSet) ServerID() int { return ds.serverID }

// Schema returns the feature schema.
func (ds *OuDataSet) Schema() *estimator.FeatureSchema { return ds.schema }

// Size returns the number of transactions.
func (ds *OuDataSet) Size() int { return len(ds.txNums) }

// TxNums returns the transaction numbers in row order.
func (ds *OuDataSet) TxNums() []int64 { return ds.txNums }

// Features returns every row as a feature record.
func (ds *OuDataSet) Features() []estimator.FeatureRecord {
	out := make([]estimator.FeatureRecord, len(ds.features))
	for i, values := range ds.features {
		out[i] = estimator.FeatureRecord{Schema: ds.schema, Values: values}
	}
	return out
}

// Labels returns the observed latencies of ou, or nil for an unknown OU.
func (ds *OuDataSet) Labels(ou string) []float64 {
	return ds.labels[ou]
}

// LabelMean returns the mean latency of ou; NaN for an empty data set.
func (ds *OuDataSet) LabelMean(ou string) float64 {
	if ds.Size() == 0 {
		return math.NaN()
	}
	return stat.Mean(ds.labels[ou], nil)
}

// LabelStd returns the population standard deviation of ou's latency.
func (ds *OuDataSet) LabelStd(ou string) float64 {
	if ds.Size() == 0 {
		return math.NaN()
	}
	return math.Sqrt(stat.PopVariance(ds.labels[ou], nil))
}

// TrainingRows returns the feature matrix rows and labels used to fit ou.
// Rows whose label lies outside mean ± k·std (k = outlier threshold) are
// dropped; a zero threshold or a constant label keeps every row.
func (ds *OuDataSet) TrainingRows(ou string) ([][]float64, []float64, error) {
	ys, ok := ds.labels[ou]
	if !ok {
		return nil, nil, fmt.Errorf("dataset: %w %q", estimator.ErrUnknownOU, ou)
	}
	if ds.outlierStdThreshold <= 0 || ds.Size() == 0 {
		return ds.features, ys, nil
	}
	mean, std := ds.LabelMean(ou), ds.LabelStd(ou)
	if std == 0 {
		return ds.features, ys, nil
	}
	lower, upper := mean-std*ds.outlierStdThreshold, mean+std*ds.outlierStdThreshold
	var xs [][]float64
	var kept []float64
	for i, y := range ys {
		if y > lower && y < upper {
			xs = append(xs, ds.features[i])
			kept = append(kept, y)
		}
	}
	return xs, kept, nil
}

// TrainTestSplit splits the rows in order: the first ratio of them train, the
// rest test.
func (ds *OuDataSet) TrainTestSplit(ratio float64) (train, test *OuDataSet) {
	n := int(float64(ds.Size()) * ratio)
	n = max(0, min(n, ds.Size()))
	return ds.slice(0, n), ds.slice(n, ds.Size())
}

func (ds *OuDataSet) slice(from, to int) *OuDataSet {
	out := &OuDataSet{
		serverID:            ds.serverID,
		schema:              ds.schema,
		txNums:              ds.txNums[from:to:to],
		features:            ds.features[from:to:to],
		labels:              make(map[string][]float64, len(ds.labels)),
		outlierStdThreshold: ds.outlierStdThreshold,
	}
	for ou, ys := range ds.labels {
		out.labels[ou] = ys[from:to:to]
	}
	return out
}

// Union appends other's rows after ds's rows. Both must share a schema layout.
func (ds *OuDataSet) Union(other *OuDataSet) (*OuDataSet, error) {
	if !sameNames(ds.schema.Names(), other.schema.Names()) {
		return nil, fmt.Errorf("dataset: cannot union data sets with different feature columns")
	}
	out := &OuDataSet{
		serverID:            ds.serverID,
		schema:              ds.schema,
		txNums:              append(append([]int64{}, ds.txNums...), other.txNums...),
		features:            append(append([][]float64{}, ds.features...), other.features...),
		labels:              make(map[string][]float64, len(ds.labels)),
		outlierStdThreshold: ds.outlierStdThreshold,
	}
	for ou, ys := range ds.labels {
		out.labels[ou] = append(append([]float64{}, ys...), other.labels[ou]...)
	}
	return out, nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
