// Package testutil provides shared test infrastructure for the estimator: a
// writer for small trace data set directories and float assertion helpers.
// It must not import the estimator packages so their in-package tests can use it.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Tx is one transaction of a fixture data set.
type Tx struct {
	TxNum       int64
	Start       int64
	Route       int
	Latency     float64   // Total Latency on the master row
	OU          float64   // value of every OU column on the master row
	CPU         []float64 // "System CPU Load", one slot per server; defaults to 0.5 each
	Deps        []int64   // nil is written as "X"
	Distributed bool
	Unrouted    bool // no master latency row on any server
}

// DataSet describes a fixture data set directory.
type DataSet struct {
	ServerCount int
	OUs         []string // OU latency column names
	Txs         []Tx
}

// FeatureColumns are the model inputs of a fixture feature table, in file order.
var FeatureColumns = []string{"Tx Type", "Is Distributed", "System CPU Load"}

// WriteDataSet writes the feature table, one latency table per server and the
// dependency file of ds into dir. Every server also gets a non-master row per
// transaction it did not master, with latencies of 999.
func WriteDataSet(t *testing.T, dir string, ds DataSet) {
	t.Helper()

	var features strings.Builder
	features.WriteString("Transaction ID,Start Time,Tx Type,Is Distributed,System CPU Load\n")
	for _, tx := range ds.Txs {
		cpu := tx.CPU
		if cpu == nil {
			cpu = make([]float64, ds.ServerCount)
			for i := range cpu {
				cpu[i] = 0.5
			}
		}
		fmt.Fprintf(&features, "%d,%d,%d,%t,\"%s\"\n",
			tx.TxNum, tx.Start, tx.TxNum%3, tx.Distributed, formatArray(cpu))
	}
	WriteFile(t, dir, "transaction-features.csv", features.String())

	header := "Transaction ID,Is Master," + strings.Join(ds.OUs, ",") + ",Total Latency\n"
	for serverID := 0; serverID < ds.ServerCount; serverID++ {
		var latency strings.Builder
		latency.WriteString(header)
		for _, tx := range ds.Txs {
			master := !tx.Unrouted && tx.Route == serverID
			ou, total := 999.0, 999.0
			if master {
				ou, total = tx.OU, tx.Latency
			}
			fmt.Fprintf(&latency, "%d,%t", tx.TxNum, master)
			for range ds.OUs {
				fmt.Fprintf(&latency, ",%s", formatFloat(ou))
			}
			fmt.Fprintf(&latency, ",%s\n", formatFloat(total))
		}
		WriteFile(t, dir, fmt.Sprintf("transaction-latency-server-%d.csv", serverID), latency.String())
	}

	var deps strings.Builder
	deps.WriteString("Transaction => Dependencies\n")
	for _, tx := range ds.Txs {
		if tx.Deps == nil {
			fmt.Fprintf(&deps, "%d => X\n", tx.TxNum)
			continue
		}
		parts := make([]string, len(tx.Deps))
		for i, d := range tx.Deps {
			parts[i] = strconv.FormatInt(d, 10)
		}
		fmt.Fprintf(&deps, "%d => %s\n", tx.TxNum, strings.Join(parts, ", "))
	}
	WriteFile(t, dir, "transaction-dependencies.txt", deps.String())
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func formatArray(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
