package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/dataset"
	"github.com/elasql/txn-estimator/internal/testutil"
)

// trainingSets writes a two-server data set where every OU latency on server s
// is 10·(s+1) + 20·cpu, and loads its OU data sets.
func trainingSets(t *testing.T) []*dataset.OuDataSet {
	t.Helper()
	dir := t.TempDir()
	var txs []testutil.Tx
	for i := 1; i <= 20; i++ {
		route := i % 2
		cpu := float64(i%5) / 10
		slots := []float64{0.5, 0.5}
		slots[route] = cpu
		txs = append(txs, testutil.Tx{
			TxNum: int64(i), Start: int64(i * 10), Route: route,
			OU: 10*float64(route+1) + 20*cpu, CPU: slots,
		})
	}
	testutil.WriteDataSet(t, dir, testutil.DataSet{ServerCount: 2, OUs: estimator.OUNames, Txs: txs})
	sets, err := dataset.LoadOuDataSets(dir, 2, dataset.Window{}, 0)
	require.NoError(t, err)
	return sets
}

func trainedSet(t *testing.T) *ServerModelSet {
	t.Helper()
	var servers []*ServerModel
	for _, ds := range trainingSets(t) {
		sm, err := TrainServerModel(ds, 0)
		require.NoError(t, err)
		servers = append(servers, sm)
	}
	set, err := NewServerModelSet(servers)
	require.NoError(t, err)
	return set
}

func TestTrainServerModel_FitsEveryOU(t *testing.T) {
	set := trainedSet(t)
	require.Equal(t, 2, set.ServerCount())

	rec := record(t, testutil.FeatureColumns, 0, 0, 0.3)
	for _, ou := range estimator.OUNames {
		got0, err := set.Predict(ou, 0, rec)
		require.NoError(t, err)
		testutil.AssertFloat64Equal(t, ou+" server 0", 16, got0, 1e-6)

		got1, err := set.Predict(ou, 1, rec)
		require.NoError(t, err)
		testutil.AssertFloat64Equal(t, ou+" server 1", 26, got1, 1e-6)
	}

	imp, err := set.Importance(estimator.OUCommit, 0)
	require.NoError(t, err)
	assert.Len(t, imp, len(testutil.FeatureColumns))
}

func TestServerModelSet_LookupErrors(t *testing.T) {
	set := trainedSet(t)
	rec := record(t, testutil.FeatureColumns, 0, 0, 0)

	_, err := set.Predict(estimator.OUCommit, 2, rec)
	assert.ErrorIs(t, err, estimator.ErrServerCount)
	_, err = set.Predict("OU9 - Nothing", 0, rec)
	assert.ErrorIs(t, err, estimator.ErrUnknownOU)
	_, err = set.Importance(estimator.OUCommit, -1)
	assert.ErrorIs(t, err, estimator.ErrServerCount)
}

func TestNewServerModelSet_Validation(t *testing.T) {
	full := trainedSet(t)

	_, err := NewServerModelSet(nil)
	assert.Error(t, err)

	_, err = NewServerModelSet([]*ServerModel{full.Server(1)})
	assert.ErrorContains(t, err, "server ids")

	_, err = NewServerModelSet([]*ServerModel{full.Server(0), full.Server(0)})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewServerModelSet([]*ServerModel{{ServerID: 0, Models: map[string]*LinearOuModel{}}})
	assert.ErrorContains(t, err, "no model")
}

func TestStore_SaveAndLoad(t *testing.T) {
	// GIVEN a trained set saved to a bolt file
	path := filepath.Join(t.TempDir(), "models.db")
	set := trainedSet(t)
	store, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(set))
	require.NoError(t, store.Close())

	// WHEN reopened and loaded
	store, err = OpenStore(path)
	require.NoError(t, err)
	defer store.Close()
	loaded, err := store.Load(2)
	require.NoError(t, err)

	// THEN every model is identical
	for serverID := 0; serverID < 2; serverID++ {
		for _, ou := range estimator.OUNames {
			assert.Equal(t, set.Server(serverID).Models[ou], loaded.Server(serverID).Models[ou])
		}
	}
}

func TestStore_SaveReplacesPreviousModels(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	defer store.Close()

	set := trainedSet(t)
	require.NoError(t, store.Save(set))
	single, err := NewServerModelSet([]*ServerModel{set.Server(0)})
	require.NoError(t, err)
	require.NoError(t, store.Save(single))

	_, err = store.Load(2)
	assert.ErrorIs(t, err, estimator.ErrServerCount)
	loaded, err := store.Load(1)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.ServerCount())
}

func TestStore_LoadEmpty(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(1)
	assert.ErrorContains(t, err, "no models saved")
}

func TestStaticPredictor(t *testing.T) {
	p, err := NewStaticPredictor(2, map[string][]float64{estimator.OUCommit: {1, 2}})
	require.NoError(t, err)

	got, err := p.Predict(estimator.OUCommit, 1, estimator.FeatureRecord{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = p.Predict(estimator.OURoute, 0, estimator.FeatureRecord{})
	require.NoError(t, err)
	assert.Zero(t, got, "missing OUs predict 0")

	_, err = p.Predict(estimator.OUCommit, 2, estimator.FeatureRecord{})
	assert.ErrorIs(t, err, estimator.ErrServerCount)

	_, err = NewStaticPredictor(2, map[string][]float64{estimator.OUCommit: {1}})
	assert.Error(t, err)
	_, err = NewStaticPredictor(1, map[string][]float64{"OU9 - Nothing": {1}})
	assert.ErrorIs(t, err, estimator.ErrUnknownOU)
}

func TestNewMeanPredictor(t *testing.T) {
	sets := trainingSets(t)

	p, err := NewMeanPredictor(sets)
	require.NoError(t, err)

	for serverID, ds := range sets {
		got, err := p.Predict(estimator.OUExecute, serverID, estimator.FeatureRecord{})
		require.NoError(t, err)
		testutil.AssertFloat64Equal(t, "mean", ds.LabelMean(estimator.OUExecute), got, 1e-12)
	}
}
