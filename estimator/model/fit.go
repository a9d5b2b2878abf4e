package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidge is the L2 penalty used when the configuration leaves it unset.
const DefaultRidge = 1.0

// Fit fits ys ≈ intercept + coefficients · x by ridge least squares.
//
// Columns are standardized before solving (ZᵀZ + ridge·I) b = Zᵀ(y - ȳ), so the
// penalty does not depend on feature units. Constant columns get a zero
// coefficient. Importances are |b| normalized to sum to 1. An empty training
// set yields the zero model.
func Fit(ou string, features []string, xs [][]float64, ys []float64, ridge float64) (*LinearOuModel, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("fit %s: %d rows for %d labels", ou, len(xs), len(ys))
	}
	if ridge < 0 || math.IsNaN(ridge) {
		return nil, fmt.Errorf("fit %s: ridge must be >= 0, got %v", ou, ridge)
	}
	p := len(features)
	for i, row := range xs {
		if len(row) != p {
			return nil, fmt.Errorf("fit %s: row %d has %d values, expected %d", ou, i, len(row), p)
		}
	}

	coefficients := make([]float64, p)
	importances := make([]float64, p)
	n := len(ys)
	if n == 0 {
		return NewLinearOuModel(ou, features, 0, coefficients, importances)
	}
	yMean := stat.Mean(ys, nil)

	// Standardization parameters of the non-constant columns.
	column := make([]float64, n)
	var active []int
	means := make([]float64, p)
	stds := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := range xs {
			column[i] = xs[i][j]
		}
		means[j], stds[j] = stat.PopMeanStdDev(column, nil)
		if stds[j] > 0 && !math.IsNaN(stds[j]) && !math.IsInf(stds[j], 0) {
			active = append(active, j)
		}
	}
	k := len(active)
	if k == 0 {
		return NewLinearOuModel(ou, features, yMean, coefficients, importances)
	}

	z := mat.NewDense(n, k, nil)
	yc := mat.NewVecDense(n, nil)
	for i := range xs {
		for c, j := range active {
			z.Set(i, c, (xs[i][j]-means[j])/stds[j])
		}
		yc.SetVec(i, ys[i]-yMean)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, z.T())
	for c := 0; c < k; c++ {
		gram.SetSym(c, c, gram.At(c, c)+ridge)
	}
	var rhs mat.VecDense
	rhs.MulVec(z.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, fmt.Errorf("fit %s: normal equations are singular, use a positive ridge", ou)
	}
	var b mat.VecDense
	if err := chol.SolveVecTo(&b, &rhs); err != nil {
		return nil, fmt.Errorf("fit %s: %w", ou, err)
	}

	intercept := yMean
	for c, j := range active {
		coefficients[j] = b.AtVec(c) / stds[j]
		intercept -= coefficients[j] * means[j]
		importances[j] = math.Abs(b.AtVec(c))
	}
	if total := floats.Sum(importances); total > 0 {
		floats.Scale(1/total, importances)
	}
	return NewLinearOuModel(ou, features, intercept, coefficients, importances)
}
