// Package report writes evaluation results: CSV reports whose columns are
// chosen by a RowFormat, and a calibration summary comparing predicted and
// observed transaction latencies.
package report

import (
	"fmt"
	"strconv"
)

// Kind selects the report layout.
type Kind int

const (
	// KindSumMax has one row per evaluated transaction.
	KindSumMax Kind = iota
	// KindOu has one row per (server, OU) model.
	KindOu
)

func (k Kind) String() string {
	switch k {
	case KindSumMax:
		return "sum-max"
	case KindOu:
		return "ou"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// RowFormat is the column layout of a report. Build it with SumMaxFormat or OuFormat.
type RowFormat struct {
	Kind         Kind
	ServerCount  int      // KindSumMax: one prediction column per server
	FeatureNames []string // KindOu: one importance column per feature
}

// SumMaxRow is one evaluated transaction.
type SumMaxRow struct {
	TxNum       int64
	Route       int
	TrueLatency float64
	Predictions []float64 // one duration per server
}

// OuRow is the evaluation of one OU model on one server's data set.
type OuRow struct {
	ServerID    int
	OU          string
	Size        int
	Mean        float64
	Std         float64
	MAE         float64
	MRE         float64
	Importances []float64
}

// SumMaxFormat lays out sum-max rows for serverCount servers.
func SumMaxFormat(serverCount int) RowFormat {
	return RowFormat{Kind: KindSumMax, ServerCount: serverCount}
}

// OuFormat lays out OU rows with one importance column per feature.
func OuFormat(featureNames []string) RowFormat {
	return RowFormat{Kind: KindOu, FeatureNames: featureNames}
}

// Header returns the column names.
func (f RowFormat) Header() []string {
	switch f.Kind {
	case KindSumMax:
		header := []string{"TxNum", "Route", "True Latency", "Target Server Prediction"}
		for serverID := 0; serverID < f.ServerCount; serverID++ {
			header = append(header, fmt.Sprintf("Server %d Prediction", serverID))
		}
		return header
	default:
		header := []string{"Server ID", "OU Name", "Data Set Size", "Mean", "STD", "MAE", "MRE"}
		return append(header, f.FeatureNames...)
	}
}

// Record formats one row. The row type must match the format kind.
func (f RowFormat) Record(row any) ([]string, error) {
	switch f.Kind {
	case KindSumMax:
		r, ok := row.(SumMaxRow)
		if !ok {
			return nil, fmt.Errorf("report: %s format cannot write %T", f.Kind, row)
		}
		return f.sumMaxRecord(r)
	case KindOu:
		r, ok := row.(OuRow)
		if !ok {
			return nil, fmt.Errorf("report: %s format cannot write %T", f.Kind, row)
		}
		return f.ouRecord(r)
	default:
		return nil, fmt.Errorf("report: unknown format %s", f.Kind)
	}
}

func (f RowFormat) sumMaxRecord(r SumMaxRow) ([]string, error) {
	if len(r.Predictions) != f.ServerCount {
		return nil, fmt.Errorf("report: tx %d has %d predictions, expected %d", r.TxNum, len(r.Predictions), f.ServerCount)
	}
	if r.Route < 0 || r.Route >= f.ServerCount {
		return nil, fmt.Errorf("report: tx %d routed to unknown server %d", r.TxNum, r.Route)
	}
	record := []string{
		strconv.FormatInt(r.TxNum, 10),
		strconv.Itoa(r.Route),
		formatFloat(r.TrueLatency),
		formatFloat(r.Predictions[r.Route]),
	}
	for _, p := range r.Predictions {
		record = append(record, formatFloat(p))
	}
	return record, nil
}

func (f RowFormat) ouRecord(r OuRow) ([]string, error) {
	record := []string{
		strconv.Itoa(r.ServerID),
		r.OU,
		strconv.Itoa(r.Size),
		formatFloat(r.Mean),
		formatFloat(r.Std),
		formatFloat(r.MAE),
		formatFloat(r.MRE),
	}
	// Predictors without importances leave the columns empty.
	if len(r.Importances) == 0 {
		for range f.FeatureNames {
			record = append(record, "")
		}
		return record, nil
	}
	if len(r.Importances) != len(f.FeatureNames) {
		return nil, fmt.Errorf("report: server %d %s has %d importances, expected %d",
			r.ServerID, r.OU, len(r.Importances), len(f.FeatureNames))
	}
	for _, v := range r.Importances {
		record = append(record, formatFloat(v))
	}
	return record, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
