package dataset

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/deps"
)

// File names inside a data set directory.
const (
	FeatureFileName    = "transaction-features.csv"
	LatencyFilePattern = "transaction-latency-server-%d.csv"
	DependencyFileName = "transaction-dependencies.txt"
)

// LatencyFileName returns the latency table name for a server.
func LatencyFileName(serverID int) string {
	return fmt.Sprintf(LatencyFilePattern, serverID)
}

// serverRow locates a master latency row.
type serverRow struct {
	serverID int
	row      int
}

// featureColumn is a model input column of the feature table.
type featureColumn struct {
	col int
	typ ColumnType
}

// TotalLatencyDataSet indexes the feature table and the per-server latency
// tables by transaction number. It is read-only after construction.
type TotalLatencyDataSet struct {
	features  *Table
	latencies []*Table
	deps      *deps.Graph

	serverCount          int
	startTxNum, endTxNum int64

	featureRows map[int64]int
	latencyRows map[int64]serverRow

	idCol, startCol int
	latencyCols     []int // Total Latency column per server
	inputs          []featureColumn
	schema          *estimator.FeatureSchema
}

// LoadTotalLatencyDataSet loads a data set directory: the feature table, one
// latency table per server (master rows only) and the dependency file.
func LoadTotalLatencyDataSet(dir string, serverCount int) (*TotalLatencyDataSet, error) {
	if serverCount < 1 {
		return nil, fmt.Errorf("dataset: server count must be >= 1, got %d", serverCount)
	}
	features, err := LoadCSV(filepath.Join(dir, FeatureFileName), nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: loading features: %w", err)
	}
	latencies := make([]*Table, serverCount)
	for serverID := range latencies {
		latencies[serverID], err = LoadCSV(filepath.Join(dir, LatencyFileName(serverID)), KeepMasters)
		if err != nil {
			return nil, fmt.Errorf("dataset: loading latencies of server %d: %w", serverID, err)
		}
	}
	graph, err := deps.Load(filepath.Join(dir, DependencyFileName))
	if err != nil {
		return nil, fmt.Errorf("dataset: loading dependencies: %w", err)
	}
	return NewTotalLatencyDataSet(features, latencies, graph)
}

// NewTotalLatencyDataSet indexes already loaded tables. Every latency table
// must contain master rows only. Every array feature must have one slot per server.
func NewTotalLatencyDataSet(features *Table, latencies []*Table, graph *deps.Graph) (*TotalLatencyDataSet, error) {
	if len(latencies) == 0 {
		return nil, fmt.Errorf("dataset: no latency tables")
	}
	if graph == nil {
		graph = deps.New(nil)
	}
	ds := &TotalLatencyDataSet{
		features:    features,
		latencies:   latencies,
		deps:        graph,
		serverCount: len(latencies),
	}
	if err := ds.buildFeatureIndex(); err != nil {
		return nil, err
	}
	if err := ds.buildLatencyIndex(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (ds *TotalLatencyDataSet) buildFeatureIndex() error {
	var err error
	if ds.idCol, err = ds.features.requireColumn(FieldID, TypeInt64); err != nil {
		return fmt.Errorf("dataset: feature table: %w", err)
	}
	if ds.startCol, err = ds.features.requireColumn(FieldStartTime, TypeInt64); err != nil {
		return fmt.Errorf("dataset: feature table: %w", err)
	}
	schema, inputs := inputColumns(ds.features)
	ds.inputs = inputs
	if ds.schema, err = estimator.NewFeatureSchema(schema); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}

	ds.featureRows = make(map[int64]int, ds.features.Len())
	ds.startTxNum, ds.endTxNum = math.MaxInt64, math.MinInt64
	for row := 0; row < ds.features.Len(); row++ {
		txNum := ds.features.Int64At(row, ds.idCol)
		for _, in := range ds.inputs {
			if in.typ == TypeFloatArray && len(ds.features.ArrayAt(row, in.col)) < ds.serverCount {
				return fmt.Errorf("dataset: tx %d: array feature %q has %d slots, need %d",
					txNum, ds.features.cols[in.col].Name, len(ds.features.ArrayAt(row, in.col)), ds.serverCount)
			}
		}
		if _, dup := ds.featureRows[txNum]; dup {
			logrus.Warnf("dataset: tx %d has more than one feature row, keeping the last", txNum)
		}
		ds.featureRows[txNum] = row
		ds.startTxNum = min(ds.startTxNum, txNum)
		ds.endTxNum = max(ds.endTxNum, txNum)
	}
	if ds.features.Len() == 0 {
		// Empty range: StartTxNum > EndTxNum, so iteration does nothing.
		ds.startTxNum, ds.endTxNum = 0, -1
	}
	return nil
}

func (ds *TotalLatencyDataSet) buildLatencyIndex() error {
	ds.latencyRows = make(map[int64]serverRow)
	ds.latencyCols = make([]int, ds.serverCount)
	for serverID, table := range ds.latencies {
		idCol, err := table.requireColumn(FieldID, TypeInt64)
		if err != nil {
			return fmt.Errorf("dataset: latency table of server %d: %w", serverID, err)
		}
		if ds.latencyCols[serverID], err = table.requireColumn(FieldTotalLatency, TypeFloat); err != nil {
			return fmt.Errorf("dataset: latency table of server %d: %w", serverID, err)
		}
		for row := 0; row < table.Len(); row++ {
			txNum := table.Int64At(row, idCol)
			if prev, dup := ds.latencyRows[txNum]; dup && prev.serverID != serverID {
				logrus.Warnf("dataset: tx %d is master on servers %d and %d, keeping %d",
					txNum, prev.serverID, serverID, serverID)
			}
			ds.latencyRows[txNum] = serverRow{serverID: serverID, row: row}
		}
	}
	return nil
}

// inputColumns picks the model inputs: every float, bool and float-array column
// except the transaction id and start time.
func inputColumns(t *Table) ([]string, []featureColumn) {
	var names []string
	var inputs []featureColumn
	for i, c := range t.cols {
		if c.Name == FieldID || c.Name == FieldStartTime || c.Type == TypeInt64 {
			continue
		}
		names = append(names, c.Name)
		inputs = append(inputs, featureColumn{col: i, typ: c.Type})
	}
	return names, inputs
}

// ServerCount returns the number of candidate servers.
func (ds *TotalLatencyDataSet) ServerCount() int { return ds.serverCount }

// StartTxNum returns the smallest transaction number in the feature table.
func (ds *TotalLatencyDataSet) StartTxNum() int64 { return ds.startTxNum }

// EndTxNum returns the largest transaction number in the feature table.
func (ds *TotalLatencyDataSet) EndTxNum() int64 { return ds.endTxNum }

// Schema returns the schema of the per-server feature records.
func (ds *TotalLatencyDataSet) Schema() *estimator.FeatureSchema { return ds.schema }

// Features returns one feature record per server for txNum, with array
// features reduced to each server's slot.
func (ds *TotalLatencyDataSet) Features(txNum int64) ([]estimator.FeatureRecord, bool) {
	row, ok := ds.featureRows[txNum]
	if !ok {
		return nil, false
	}
	out := make([]estimator.FeatureRecord, ds.serverCount)
	for serverID := range out {
		out[serverID] = estimator.FeatureRecord{
			Schema: ds.schema,
			Values: splitRow(ds.features, ds.inputs, row, serverID),
		}
	}
	return out, true
}

// splitRow flattens one feature row for a single server.
func splitRow(t *Table, inputs []featureColumn, row, serverID int) []float64 {
	values := make([]float64, len(inputs))
	for i, in := range inputs {
		switch in.typ {
		case TypeFloatArray:
			values[i] = t.ArrayAt(row, in.col)[serverID]
		case TypeBool:
			if t.BoolAt(row, in.col) {
				values[i] = 1
			}
		default:
			values[i] = t.FloatAt(row, in.col)
		}
	}
	return values
}

// StartTime returns the start timestamp of txNum.
func (ds *TotalLatencyDataSet) StartTime(txNum int64) (int64, bool) {
	row, ok := ds.featureRows[txNum]
	if !ok {
		return 0, false
	}
	return ds.features.Int64At(row, ds.startCol), true
}

// RouteAndLatency returns the server txNum was routed to and its observed total
// latency, taken from its master row.
func (ds *TotalLatencyDataSet) RouteAndLatency(txNum int64) (serverID int, latency float64, ok bool) {
	loc, ok := ds.latencyRows[txNum]
	if !ok {
		return 0, 0, false
	}
	return loc.serverID, ds.latencies[loc.serverID].FloatAt(loc.row, ds.latencyCols[loc.serverID]), true
}

// Dependencies returns the antecedents of txNum (empty if none).
func (ds *TotalLatencyDataSet) Dependencies(txNum int64) []int64 {
	return ds.deps.DependenciesOf(txNum)
}

// Graph returns the dependency graph.
func (ds *TotalLatencyDataSet) Graph() *deps.Graph { return ds.deps }
