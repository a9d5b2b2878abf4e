// Package deps loads the transaction dependency graph: for every transaction,
// the earlier transactions it must wait for before acquiring its locks.
package deps

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// noDependencies is the right-hand side marking a transaction without antecedents.
const noDependencies = "X"

// Graph maps a transaction to the transactions it depends on.
// A Graph is read-only after construction.
type Graph struct {
	deps map[int64][]int64
}

// New builds a graph from an adjacency map. Duplicate antecedents are dropped
// and transactions with no antecedents are not stored.
func New(adjacency map[int64][]int64) *Graph {
	g := &Graph{deps: make(map[int64][]int64, len(adjacency))}
	for tx, ds := range adjacency {
		if uniq := dedup(ds); len(uniq) > 0 {
			g.deps[tx] = uniq
		}
	}
	return g
}

// Load reads a dependency file. The first line is a header and is skipped.
// Every other non-blank line is either "<tx> => <dep>, <dep>, ..." or "<tx> => X".
// Any malformed line fails the whole load.
func Load(path string) (g *Graph, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dependency file: %w", err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()

	g, err = Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse reads dependency lines from r; see Load for the format.
func Parse(r io.Reader) (*Graph, error) {
	g := &Graph{deps: make(map[int64][]int64)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tx, ds, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ds == nil {
			continue
		}
		if _, seen := g.deps[tx]; seen {
			logrus.Warnf("dependency graph: tx %d listed more than once (line %d), keeping the last entry", tx, lineNo)
		}
		g.deps[tx] = ds
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dependency lines: %w", err)
	}
	return g, nil
}

// parseLine returns nil dependencies for an "X" line.
func parseLine(line string) (int64, []int64, error) {
	parts := strings.Split(line, "=>")
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("malformed dependency line %q: expected exactly one '=>'", line)
	}
	tx, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("malformed transaction number in %q: %w", line, err)
	}
	rhs := strings.TrimSpace(parts[1])
	if rhs == noDependencies {
		return tx, nil, nil
	}
	tokens := strings.Split(rhs, ",")
	ds := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		d, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("malformed dependency of tx %d in %q: %w", tx, line, err)
		}
		ds = append(ds, d)
	}
	return tx, dedup(ds), nil
}

func dedup(ds []int64) []int64 {
	out := make([]int64, 0, len(ds))
	seen := make(map[int64]bool, len(ds))
	for _, d := range ds {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// DependenciesOf returns the antecedents of tx, or an empty slice if none were
// recorded. The result is a copy; the graph is never modified.
func (g *Graph) DependenciesOf(tx int64) []int64 {
	ds, ok := g.deps[tx]
	if !ok {
		return []int64{}
	}
	return slices.Clone(ds)
}

// Len returns the number of transactions with at least one dependency.
func (g *Graph) Len() int {
	return len(g.deps)
}

// DependentCounts reverses the graph: for every transaction that appears as an
// antecedent, the number of transactions depending on it.
func (g *Graph) DependentCounts() map[int64]int {
	counts := make(map[int64]int)
	for _, ds := range g.deps {
		for _, d := range ds {
			counts[d]++
		}
	}
	return counts
}
