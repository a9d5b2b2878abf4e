// Package estimator provides the shared vocabulary of the transaction latency
// estimator: operation unit (OU) names, the per-server feature record handed to
// predictors, the Predictor capability and the error classes raised by the
// estimation pipeline.
//
// # Architecture
//
// The estimator package defines interfaces and bridge types; implementations live in
// sub-packages:
//   - estimator/dataset/: CSV loading with schema inference, the feature/latency
//     index used for end-to-end evaluation and the per-server OU training sets
//   - estimator/deps/: transaction dependency graph parsing
//   - estimator/model/: linear OU regression models and their bolt-backed store
//   - estimator/summax/: the sequential sum-max estimator (two-phase protocol)
//   - estimator/evaluate/: drivers that walk a data set and feed the estimator
//   - estimator/report/: CSV report rows and calibration summaries
//   - estimator/metrics/: prometheus counters for an estimation run
//   - estimator/config/: YAML/TOML configuration
//
// # Key Interfaces
//
//   - Predictor: per-server OU latency prediction and feature importance
//
// The sum-max estimator depends only on Predictor, never on a concrete model,
// so it can be driven by deterministic stubs in tests.
package estimator
