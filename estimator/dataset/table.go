// Package dataset loads the raw transaction traces: the feature table, the
// per-server latency tables and the dependency file. It builds the
// feature/latency index walked by the sum-max evaluation and the per-server
// OU data sets used to fit and test operation models.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Column names with a fixed meaning in every trace file.
const (
	FieldID            = "Transaction ID"
	FieldStartTime     = "Start Time"
	FieldIsMaster      = "Is Master"
	FieldIsDistributed = "Is Distributed"
	FieldTotalLatency  = "Total Latency"
)

// ColumnType is the inferred type of a CSV column.
type ColumnType int

const (
	TypeFloat ColumnType = iota
	TypeInt64
	TypeBool
	TypeFloatArray
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeBool:
		return "bool"
	case TypeFloatArray:
		return "float-array"
	default:
		return "float"
	}
}

// Column describes one table column.
type Column struct {
	Name string
	Type ColumnType
}

// column stores the values of one column; only the slice matching Type is used.
type column struct {
	Column
	ints   []int64
	floats []float64
	bools  []bool
	arrays [][]float64
}

// Table is a typed, column-oriented view of a trace CSV file.
type Table struct {
	cols  []*column
	index map[string]int
	rows  int
}

func newTable(columns []Column) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		t.cols = append(t.cols, &column{Column: c})
		t.index[c.Name] = i
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Columns returns the schema in file order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Column
	}
	return out
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) requireColumn(name string, typ ColumnType) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("missing column %q", name)
	}
	if t.cols[i].Type != typ {
		return 0, fmt.Errorf("column %q is %s, expected %s", name, t.cols[i].Type, typ)
	}
	return i, nil
}

// Int64At returns an int64 cell by column position.
func (t *Table) Int64At(row, col int) int64 { return t.cols[col].ints[row] }

// FloatAt returns a float cell by column position.
func (t *Table) FloatAt(row, col int) float64 { return t.cols[col].floats[row] }

// BoolAt returns a bool cell by column position.
func (t *Table) BoolAt(row, col int) bool { return t.cols[col].bools[row] }

// ArrayAt returns a float-array cell by column position. The caller must not modify it.
func (t *Table) ArrayAt(row, col int) []float64 { return t.cols[col].arrays[row] }

// Int64 returns the named int64 cell.
func (t *Table) Int64(row int, name string) (int64, error) {
	col, err := t.requireColumn(name, TypeInt64)
	if err != nil {
		return 0, err
	}
	return t.Int64At(row, col), nil
}

// Float returns the named float cell.
func (t *Table) Float(row int, name string) (float64, error) {
	col, err := t.requireColumn(name, TypeFloat)
	if err != nil {
		return 0, err
	}
	return t.FloatAt(row, col), nil
}

// Bool returns the named bool cell.
func (t *Table) Bool(row int, name string) (bool, error) {
	col, err := t.requireColumn(name, TypeBool)
	if err != nil {
		return false, err
	}
	return t.BoolAt(row, col), nil
}

// RowFilter decides whether a freshly parsed row is kept.
type RowFilter func(t *Table, row int) (bool, error)

// KeepMasters keeps rows whose "Is Master" flag is set.
func KeepMasters(t *Table, row int) (bool, error) {
	return t.Bool(row, FieldIsMaster)
}

// KeepStartedWithin keeps rows whose start time lies strictly inside (after, before).
// A zero before means no upper bound.
func KeepStartedWithin(after, before int64) RowFilter {
	return func(t *Table, row int) (bool, error) {
		start, err := t.Int64(row, FieldStartTime)
		if err != nil {
			return false, err
		}
		return start > after && (before == 0 || start < before), nil
	}
}

// LoadCSV reads a trace CSV file. Header lines may repeat anywhere in the file
// (a line whose first cell is "Transaction ID"); the last one defines the
// column names. Column types are inferred from the last data line. Rows
// rejected by keep are dropped; keep may be nil.
func LoadCSV(path string, keep RowFilter) (t *Table, err error) {
	header, sample, err := scanSchema(path)
	if err != nil {
		return nil, err
	}
	columns, err := inferColumns(header, sample)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()

	t = newTable(columns)
	reader := newReader(file)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: reading CSV line %d: %w", path, line, err)
		}
		if isHeader(record) {
			continue
		}
		if err := t.appendRecord(record); err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		if keep == nil {
			continue
		}
		ok, err := keep(t, t.rows-1)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		if !ok {
			t.dropLast()
		}
	}
	return t, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
	return reader
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.TrimSpace(record[0]) == FieldID
}

// scanSchema finds the last header line and the last data line.
func scanSchema(path string) (header, sample []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()

	reader := newReader(file)
	reader.ReuseRecord = false
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: scanning header: %w", path, err)
		}
		if isHeader(record) {
			header = record
		} else {
			sample = record
		}
	}
	if header == nil {
		return nil, nil, fmt.Errorf("%s: no header line starting with %q", path, FieldID)
	}
	return header, sample, nil
}

// inferColumns types the header columns: the id and start time are int64, the
// master/distributed flags are bool, a sample value starting with '[' is a float
// array and everything else is a float. With no sample all other columns are floats.
func inferColumns(header, sample []string) ([]Column, error) {
	columns := make([]Column, len(header))
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		columns[i] = Column{Name: name, Type: TypeFloat}
		switch name {
		case FieldID, FieldStartTime:
			columns[i].Type = TypeInt64
		case FieldIsMaster, FieldIsDistributed:
			columns[i].Type = TypeBool
		default:
			if i < len(sample) && strings.HasPrefix(strings.TrimSpace(sample[i]), "[") {
				columns[i].Type = TypeFloatArray
			}
		}
	}
	return columns, nil
}

func (t *Table) appendRecord(record []string) error {
	for i, c := range t.cols {
		val := ""
		if i < len(record) {
			val = strings.TrimSpace(record[i])
		}
		if val == "" {
			// Missing values are only tolerated for plain floats.
			if c.Type != TypeFloat {
				t.truncate(t.rows)
				return fmt.Errorf("missing value for column %q", c.Name)
			}
			c.floats = append(c.floats, 0)
			continue
		}
		if err := c.append(val); err != nil {
			t.truncate(t.rows)
			return err
		}
	}
	t.rows++
	return nil
}

func (c *column) append(val string) error {
	switch c.Type {
	case TypeInt64:
		v, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		c.ints = append(c.ints, v)
	case TypeBool:
		v, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		c.bools = append(c.bools, v)
	case TypeFloatArray:
		v, err := ParseFloatArray(val)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		c.arrays = append(c.arrays, v)
	default:
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		c.floats = append(c.floats, v)
	}
	return nil
}

// truncate cuts every column back to n rows.
func (t *Table) truncate(n int) {
	for _, c := range t.cols {
		switch c.Type {
		case TypeInt64:
			c.ints = c.ints[:min(n, len(c.ints))]
		case TypeBool:
			c.bools = c.bools[:min(n, len(c.bools))]
		case TypeFloatArray:
			c.arrays = c.arrays[:min(n, len(c.arrays))]
		default:
			c.floats = c.floats[:min(n, len(c.floats))]
		}
	}
	t.rows = min(t.rows, n)
}

func (t *Table) dropLast() {
	t.truncate(t.rows - 1)
}

// ParseFloatArray parses a bracketed, comma-separated list such as "[1.5,2,0]".
func ParseFloatArray(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed array %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed array %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}
