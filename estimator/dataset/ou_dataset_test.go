package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/internal/testutil"
)

// ouFixture writes a single-server data set whose OU labels are the given values.
func ouFixture(t *testing.T, labels ...float64) []*OuDataSet {
	t.Helper()
	dir := t.TempDir()
	var txs []testutil.Tx
	for i, y := range labels {
		txs = append(txs, testutil.Tx{
			TxNum: int64(i + 1), Start: int64(100 * (i + 1)), Latency: y, OU: y,
			CPU: []float64{float64(i)},
		})
	}
	testutil.WriteDataSet(t, dir, testutil.DataSet{ServerCount: 1, OUs: estimator.OUNames, Txs: txs})
	sets, err := LoadOuDataSets(dir, 1, Window{}, 1)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	return sets
}

func TestLoadOuDataSets_JoinsMasterRowsWithinWindow(t *testing.T) {
	// GIVEN four transactions spread over two servers
	dir := t.TempDir()
	testutil.WriteDataSet(t, dir, testutil.DataSet{
		ServerCount: 2,
		OUs:         estimator.OUNames,
		Txs: []testutil.Tx{
			{TxNum: 1, Start: 100, Route: 0, OU: 1},
			{TxNum: 2, Start: 200, Route: 0, OU: 2, CPU: []float64{0.2, 0.8}},
			{TxNum: 3, Start: 300, Route: 1, OU: 3, CPU: []float64{0.3, 0.7}},
			{TxNum: 4, Start: 400, Route: 0, OU: 4},
		},
	})

	// WHEN loaded with a window that keeps starts strictly inside (100, 400)
	sets, err := LoadOuDataSets(dir, 2, Window{WarmUpEndTime: 100, DataEndTime: 400}, 0)
	require.NoError(t, err)
	require.Len(t, sets, 2)

	// THEN each server only sees the transactions it mastered inside the window
	assert.Equal(t, []int64{2}, sets[0].TxNums())
	assert.Equal(t, []int64{3}, sets[1].TxNums())
	assert.Equal(t, 1, sets[1].ServerID())

	// AND labels and split features follow the server
	assert.Equal(t, []float64{2}, sets[0].Labels(estimator.OUCommit))
	assert.Equal(t, []float64{3}, sets[1].Labels(estimator.OUBroadcast))
	cpu, ok := sets[1].Features()[0].Value("System CPU Load")
	require.True(t, ok)
	assert.Equal(t, 0.7, cpu)
}

func TestOuDataSet_LabelStatistics(t *testing.T) {
	ds := ouFixture(t, 10, 10, 10, 10, 100)[0]

	testutil.AssertFloat64Equal(t, "mean", 28, ds.LabelMean(estimator.OUExecute), 1e-9)
	testutil.AssertFloat64Equal(t, "std", 36, ds.LabelStd(estimator.OUExecute), 1e-9)
	assert.Equal(t, 5, ds.Size())
}

func TestOuDataSet_TrainingRowsDropsOutliers(t *testing.T) {
	// GIVEN labels with mean 28 and std 36, and a threshold of one std
	ds := ouFixture(t, 10, 10, 10, 10, 100)[0]

	// WHEN training rows are requested
	xs, ys, err := ds.TrainingRows(estimator.OUExecute)
	require.NoError(t, err)

	// THEN the label at 100 (outside 28 ± 36) is dropped with its features
	assert.Equal(t, []float64{10, 10, 10, 10}, ys)
	require.Len(t, xs, 4)
	assert.Equal(t, 3.0, xs[3][2], "features stay aligned with labels")
}

func TestOuDataSet_TrainingRowsWithoutThresholdKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDataSet(t, dir, testutil.DataSet{
		ServerCount: 1,
		OUs:         estimator.OUNames,
		Txs: []testutil.Tx{
			{TxNum: 1, Start: 1, OU: 10},
			{TxNum: 2, Start: 2, OU: 1000},
		},
	})
	sets, err := LoadOuDataSets(dir, 1, Window{}, 0)
	require.NoError(t, err)

	_, ys, err := sets[0].TrainingRows(estimator.OUCommit)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 1000}, ys)
}

func TestOuDataSet_TrainingRowsUnknownOU(t *testing.T) {
	ds := ouFixture(t, 1, 2)[0]
	_, _, err := ds.TrainingRows("OU9 - Nothing")
	assert.ErrorIs(t, err, estimator.ErrUnknownOU)
}

func TestOuDataSet_TrainTestSplitKeepsOrder(t *testing.T) {
	ds := ouFixture(t, 1, 2, 3, 4)[0]

	train, test := ds.TrainTestSplit(0.75)

	assert.Equal(t, []int64{1, 2, 3}, train.TxNums())
	assert.Equal(t, []int64{4}, test.TxNums())
	assert.Equal(t, []float64{4}, test.Labels(estimator.OUCommit))

	all, _ := ds.TrainTestSplit(1)
	assert.Equal(t, 4, all.Size())
}

func TestOuDataSet_UnionAppendsRows(t *testing.T) {
	ds := ouFixture(t, 1, 2, 3)[0]
	train, test := ds.TrainTestSplit(0.5)

	joined, err := test.Union(train)
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 3, 1}, joined.TxNums())
	assert.Equal(t, []float64{2, 3, 1}, joined.Labels(estimator.OURoute))
	assert.Equal(t, 1, train.Size(), "union must not modify its inputs")
}

func TestOuDataSet_EmptyStatisticsAreNaN(t *testing.T) {
	ds := ouFixture(t, 1)[0]
	empty, _ := ds.TrainTestSplit(0)
	assert.True(t, math.IsNaN(empty.LabelMean(estimator.OUCommit)))
	assert.True(t, math.IsNaN(empty.LabelStd(estimator.OUCommit)))
}
