// Package model provides the OU latency models behind estimator.Predictor:
// one linear regression per (server, OU), fitted by ridge least squares, and a
// bolt-backed store to persist them between the train, test and evaluate runs.
package model

import (
	"fmt"
	"math"

	"github.com/elasql/txn-estimator/estimator"
)

// LinearOuModel predicts one OU's latency as intercept + coefficients · features.
type LinearOuModel struct {
	OU           string    `json:"ou"`
	Features     []string  `json:"features"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Importances  []float64 `json:"importances"`
}

// NewLinearOuModel creates a model and validates it.
func NewLinearOuModel(ou string, features []string, intercept float64, coefficients, importances []float64) (*LinearOuModel, error) {
	m := &LinearOuModel{
		OU:           ou,
		Features:     features,
		Intercept:    intercept,
		Coefficients: coefficients,
		Importances:  importances,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the OU name, the slice lengths and that no parameter is NaN or Inf.
func (m *LinearOuModel) Validate() error {
	if !estimator.IsValidOU(m.OU) {
		return fmt.Errorf("linear model: %w %q", estimator.ErrUnknownOU, m.OU)
	}
	if len(m.Coefficients) != len(m.Features) {
		return fmt.Errorf("linear model %s: %d coefficients for %d features", m.OU, len(m.Coefficients), len(m.Features))
	}
	if m.Importances != nil && len(m.Importances) != len(m.Features) {
		return fmt.Errorf("linear model %s: %d importances for %d features", m.OU, len(m.Importances), len(m.Features))
	}
	if err := validateParams(m.OU, "intercept", []float64{m.Intercept}); err != nil {
		return err
	}
	if err := validateParams(m.OU, "coefficients", m.Coefficients); err != nil {
		return err
	}
	return validateParams(m.OU, "importances", m.Importances)
}

// validateParams checks for NaN or Inf in a parameter slice.
func validateParams(ou, name string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) {
			return fmt.Errorf("linear model %s: %s[%d] is NaN", ou, name, i)
		}
		if math.IsInf(v, 0) {
			return fmt.Errorf("linear model %s: %s[%d] is Inf", ou, name, i)
		}
	}
	return nil
}

// Predict evaluates the model on rec, looking features up by name.
// Latencies are never negative, so the result is clamped at 0.
func (m *LinearOuModel) Predict(rec estimator.FeatureRecord) (float64, error) {
	y := m.Intercept
	for j, name := range m.Features {
		if m.Coefficients[j] == 0 {
			continue
		}
		x, ok := rec.Value(name)
		if !ok {
			return 0, fmt.Errorf("linear model %s: record has no feature %q", m.OU, name)
		}
		y += m.Coefficients[j] * x
	}
	return max(0, y), nil
}
