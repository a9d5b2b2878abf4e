package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/internal/testutil"
)

func record(t *testing.T, names []string, values ...float64) estimator.FeatureRecord {
	t.Helper()
	schema, err := estimator.NewFeatureSchema(names)
	require.NoError(t, err)
	return estimator.FeatureRecord{Schema: schema, Values: values}
}

func TestFit_RecoversExactLinearRelation(t *testing.T) {
	// GIVEN y = 1 + 2a - b and a constant column c
	features := []string{"a", "b", "c"}
	var xs [][]float64
	var ys []float64
	for i := 0; i < 10; i++ {
		a, b := float64(i), float64(i*i%7)
		xs = append(xs, []float64{a, b, 5})
		ys = append(ys, 1+2*a-b)
	}

	// WHEN fitted without penalty
	m, err := Fit(estimator.OUExecute, features, xs, ys, 0)
	require.NoError(t, err)

	// THEN the parameters are recovered and the constant column is ignored
	testutil.AssertFloat64Equal(t, "intercept", 1, m.Intercept, 1e-9)
	testutil.AssertSliceFloat64Equal(t, "coefficients", []float64{2, -1, 0}, m.Coefficients, 1e-9)
	testutil.AssertFloat64Equal(t, "importance sum", 1, m.Importances[0]+m.Importances[1]+m.Importances[2], 1e-9)
	assert.Greater(t, m.Importances[0], m.Importances[1])
	assert.Zero(t, m.Importances[2])

	got, err := m.Predict(record(t, features, 4, 2, 5))
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "prediction", 7, got, 1e-9)
}

func TestFit_RidgeShrinksCoefficients(t *testing.T) {
	var xs [][]float64
	var ys []float64
	for i := 0; i < 10; i++ {
		xs = append(xs, []float64{float64(i)})
		ys = append(ys, 3*float64(i))
	}

	m, err := Fit(estimator.OUCommit, []string{"x"}, xs, ys, 1000)
	require.NoError(t, err)

	assert.Less(t, math.Abs(m.Coefficients[0]), 3.0)
	assert.Greater(t, m.Coefficients[0], 0.0)
}

func TestFit_DegenerateInputs(t *testing.T) {
	// empty training set: zero model
	m, err := Fit(estimator.OUCommit, []string{"x"}, nil, nil, DefaultRidge)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Intercept)
	assert.Equal(t, []float64{0}, m.Coefficients)

	// only constant columns: the label mean
	m, err = Fit(estimator.OUCommit, []string{"x"}, [][]float64{{1}, {1}}, []float64{2, 4}, DefaultRidge)
	require.NoError(t, err)
	assert.Equal(t, 3.0, m.Intercept)
}

func TestFit_RejectsBadInput(t *testing.T) {
	_, err := Fit(estimator.OUCommit, []string{"x"}, [][]float64{{1}}, []float64{1, 2}, 0)
	assert.Error(t, err)

	_, err = Fit(estimator.OUCommit, []string{"x"}, [][]float64{{1, 2}}, []float64{1}, 0)
	assert.ErrorContains(t, err, "row 0")

	_, err = Fit(estimator.OUCommit, []string{"x"}, [][]float64{{1}}, []float64{1}, -1)
	assert.ErrorContains(t, err, "ridge")

	_, err = Fit("OU9 - Nothing", []string{"x"}, nil, nil, 0)
	assert.ErrorIs(t, err, estimator.ErrUnknownOU)
}

func TestLinearOuModel_PredictClampsAtZero(t *testing.T) {
	m, err := NewLinearOuModel(estimator.OURoute, []string{"x"}, -5, []float64{1}, nil)
	require.NoError(t, err)

	got, err := m.Predict(record(t, []string{"x"}, 2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestLinearOuModel_PredictByName(t *testing.T) {
	m, err := NewLinearOuModel(estimator.OURoute, []string{"b", "a"}, 0, []float64{10, 1}, nil)
	require.NoError(t, err)

	// the record lays columns out in a different order
	got, err := m.Predict(record(t, []string{"a", "b"}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 21.0, got)

	_, err = m.Predict(record(t, []string{"a"}, 1))
	assert.ErrorContains(t, err, `"b"`)
}

func TestNewLinearOuModel_Validation(t *testing.T) {
	tests := []struct {
		name         string
		intercept    float64
		coefficients []float64
		importances  []float64
		wantErr      string
	}{
		{"NaN intercept", math.NaN(), []float64{1}, nil, "NaN"},
		{"Inf coefficient", 0, []float64{math.Inf(1)}, nil, "Inf"},
		{"short coefficients", 0, []float64{}, nil, "coefficients"},
		{"short importances", 0, []float64{1}, []float64{}, "importances"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLinearOuModel(estimator.OURoute, []string{"x"}, tt.intercept, tt.coefficients, tt.importances)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
