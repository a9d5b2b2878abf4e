package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elasql/txn-estimator/internal/testutil"
)

func TestLoadCSV_InfersTypesAndSkipsRepeatedHeaders(t *testing.T) {
	// GIVEN a trace file whose header is repeated in the middle
	path := testutil.WriteFile(t, t.TempDir(), "trace.csv",
		"Transaction ID,Start Time,Latency,Is Master,CPU\n"+
			"1,100,,true,\"[1,2]\"\n"+
			"Transaction ID,Start Time,Latency,Is Master,CPU\n"+
			"2,200,4.5,false,\"[3, 4]\"\n")

	// WHEN loaded without a filter
	tbl, err := LoadCSV(path, nil)
	require.NoError(t, err)

	// THEN the header line is not a row and every column has its inferred type
	assert.Equal(t, []Column{
		{Name: FieldID, Type: TypeInt64},
		{Name: FieldStartTime, Type: TypeInt64},
		{Name: "Latency", Type: TypeFloat},
		{Name: FieldIsMaster, Type: TypeBool},
		{Name: "CPU", Type: TypeFloatArray},
	}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())

	id, err := tbl.Int64(1, FieldID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	// empty float cells are filled with 0
	lat, err := tbl.Float(0, "Latency")
	require.NoError(t, err)
	assert.Equal(t, 0.0, lat)

	col, ok := tbl.ColumnIndex("CPU")
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4}, tbl.ArrayAt(1, col))
}

func TestLoadCSV_KeepMastersDropsOtherRows(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "latency.csv",
		"Transaction ID,Is Master,Total Latency\n"+
			"1,true,10\n"+
			"2,false,20\n"+
			"3,true,30\n")

	tbl, err := LoadCSV(path, KeepMasters)
	require.NoError(t, err)

	require.Equal(t, 2, tbl.Len())
	last, err := tbl.Float(1, FieldTotalLatency)
	require.NoError(t, err)
	assert.Equal(t, 30.0, last)
}

func TestLoadCSV_KeepStartedWithinIsStrict(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "features.csv",
		"Transaction ID,Start Time,X\n"+
			"1,100,0\n"+
			"2,200,0\n"+
			"3,300,0\n"+
			"4,400,0\n")

	tests := []struct {
		name          string
		after, before int64
		want          []int64
	}{
		{"bounded window", 100, 400, []int64{2, 3}},
		{"no upper bound", 100, 0, []int64{2, 3, 4}},
		{"everything", 0, 0, []int64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := LoadCSV(path, KeepStartedWithin(tt.after, tt.before))
			require.NoError(t, err)
			var got []int64
			for row := 0; row < tbl.Len(); row++ {
				id, err := tbl.Int64(row, FieldID)
				require.NoError(t, err)
				got = append(got, id)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadCSV_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no header", "1,2,3\n", "no header line"},
		{"bad int", "Transaction ID,X\n1,1\nabc,2\n", "line 3"},
		{"missing int", "Transaction ID,X\n,2\n", "missing value"},
		{"bad bool", "Transaction ID,Is Master\n1,maybe\n", "Is Master"},
		{"duplicate column", "Transaction ID,X,X\n1,2,3\n", "duplicate column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), "bad.csv", tt.content)
			_, err := LoadCSV(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(t.TempDir()+"/nope.csv", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.csv")
}

func TestTable_TypedAccessorsRejectWrongType(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "t.csv", "Transaction ID,X\n1,2.5\n")
	tbl, err := LoadCSV(path, nil)
	require.NoError(t, err)

	_, err = tbl.Float(0, FieldID)
	assert.ErrorContains(t, err, "expected float")
	_, err = tbl.Bool(0, "X")
	assert.ErrorContains(t, err, "expected bool")
	_, err = tbl.Int64(0, "Y")
	assert.ErrorContains(t, err, "missing column")
}

func TestParseFloatArray(t *testing.T) {
	tests := []struct {
		in      string
		want    []float64
		wantErr bool
	}{
		{in: "[1.5,2,0]", want: []float64{1.5, 2, 0}},
		{in: " [ 1 , 2 ] ", want: []float64{1, 2}},
		{in: "[]", want: []float64{}},
		{in: "1,2", wantErr: true},
		{in: "[1,x]", wantErr: true},
		{in: "[", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFloatArray(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
