// Package metrics counts the progress of an estimation run on a private
// prometheus registry, and dumps it in the text exposition format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder observes an estimation run. It satisfies summax.Observer and
// evaluate.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	estimated       prometheus.Counter
	committed       prometheus.Counter
	gapsSkipped     prometheus.Counter
	evicted         prometheus.Counter
	resolvedLive    prometheus.Gauge
	predictionError prometheus.Histogram
}

// NewRecorder registers the estimator metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		estimated: factory.NewCounter(prometheus.CounterOpts{
			Name: "txn_estimator_estimated_total",
			Help: "Transactions estimated on every candidate server",
		}),
		committed: factory.NewCounter(prometheus.CounterOpts{
			Name: "txn_estimator_committed_total",
			Help: "Routing decisions committed",
		}),
		gapsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "txn_estimator_gaps_skipped_total",
			Help: "Transactions skipped for missing feature or latency data",
		}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "txn_estimator_resolved_evicted_total",
			Help: "Resolved end times dropped after their last dependent committed",
		}),
		resolvedLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "txn_estimator_resolved_entries",
			Help: "Resolved end times currently remembered",
		}),
		predictionError: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txn_estimator_relative_error",
			Help:    "Relative error of the prediction for the chosen server",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2},
		}),
	}
}

// Estimated implements summax.Observer.
func (r *Recorder) Estimated(int64) { r.estimated.Inc() }

// Committed implements summax.Observer.
func (r *Recorder) Committed(_ int64, live int) {
	r.committed.Inc()
	r.resolvedLive.Set(float64(live))
}

// Evicted implements summax.Observer.
func (r *Recorder) Evicted(n int) { r.evicted.Add(float64(n)) }

// GapSkipped counts a transaction the evaluation could not estimate.
func (r *Recorder) GapSkipped() { r.gapsSkipped.Inc() }

// ObserveRelativeError records |predicted - true| / true. Zero true latencies are ignored.
func (r *Recorder) ObserveRelativeError(predicted, truth float64) {
	if truth == 0 {
		return
	}
	diff := predicted - truth
	if diff < 0 {
		diff = -diff
	}
	r.predictionError.Observe(diff / truth)
}

// Registry returns the registry holding the metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
