package report

import (
	"fmt"
	"io"
	"math"

	"github.com/montanaflynn/stats"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Percentiles summarizes one latency distribution.
type Percentiles struct {
	Mean float64 `yaml:"mean"`
	P50  float64 `yaml:"p50"`
	P90  float64 `yaml:"p90"`
	P95  float64 `yaml:"p95"`
	P99  float64 `yaml:"p99"`
}

// Calibration compares the predicted latency of the chosen server with the
// observed latency over a sum-max evaluation.
type Calibration struct {
	RunID         string      `yaml:"run_id,omitempty"`
	Count         int         `yaml:"count"`
	True          Percentiles `yaml:"true"`
	Predicted     Percentiles `yaml:"predicted"`
	MAPE          float64     `yaml:"mape"`
	PearsonR      float64     `yaml:"pearson_r"`
	BiasDirection string      `yaml:"bias_direction"` // "over-predict", "under-predict", "neutral"
	Quality       string      `yaml:"quality"`        // "excellent", "good", "fair", "poor"
	// MeanRegret is the average gap between the prediction for the chosen
	// server and the best prediction among all servers.
	MeanRegret        float64     `yaml:"mean_regret"`
	RouteDistribution map[int]int `yaml:"route_distribution"`
}

// Calibrate summarizes sum-max rows.
func Calibrate(rows []SumMaxRow) (*Calibration, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("calibrate: no rows")
	}
	truth := make([]float64, len(rows))
	predicted := make([]float64, len(rows))
	c := &Calibration{Count: len(rows), RouteDistribution: make(map[int]int)}

	var regret float64
	for i, r := range rows {
		if r.Route < 0 || r.Route >= len(r.Predictions) {
			return nil, fmt.Errorf("calibrate: tx %d routed to unknown server %d", r.TxNum, r.Route)
		}
		truth[i] = r.TrueLatency
		predicted[i] = r.Predictions[r.Route]
		c.RouteDistribution[r.Route]++
		best, err := stats.Min(r.Predictions)
		if err != nil {
			return nil, fmt.Errorf("calibrate: tx %d: %w", r.TxNum, err)
		}
		regret += predicted[i] - best
	}
	c.MeanRegret = regret / float64(len(rows))

	var err error
	if c.True, err = summarize(truth); err != nil {
		return nil, fmt.Errorf("calibrate: true latency: %w", err)
	}
	if c.Predicted, err = summarize(predicted); err != nil {
		return nil, fmt.Errorf("calibrate: predicted latency: %w", err)
	}

	// MAPE (skip where the true latency is 0)
	var apeSum, biasSum float64
	apeCount := 0
	for i := range truth {
		if truth[i] == 0 {
			continue
		}
		apeSum += math.Abs(truth[i]-predicted[i]) / truth[i]
		biasSum += predicted[i] - truth[i]
		apeCount++
	}
	c.BiasDirection = "neutral"
	if apeCount > 0 {
		c.MAPE = apeSum / float64(apeCount)
		if biasSum > 0 {
			c.BiasDirection = "over-predict"
		} else if biasSum < 0 {
			c.BiasDirection = "under-predict"
		}
	}

	// Pearson r (requires N >= 3); undefined for a constant series
	if len(rows) >= 3 {
		if r, err := stats.Pearson(truth, predicted); err == nil && !math.IsNaN(r) {
			c.PearsonR = r
		}
	}
	c.Quality = qualityRating(c.MAPE, c.PearsonR)
	return c, nil
}

func summarize(values []float64) (Percentiles, error) {
	var p Percentiles
	var err error
	if p.Mean, err = stats.Mean(values); err != nil {
		return p, err
	}
	if p.P50, err = stats.Median(values); err != nil {
		return p, err
	}
	for _, q := range []struct {
		dst     *float64
		percent float64
	}{{&p.P90, 90}, {&p.P95, 95}, {&p.P99, 99}} {
		v, err := stats.Percentile(values, q.percent)
		if err != nil {
			// Too few values to place the percentile; fall back to the maximum.
			v, err = stats.Max(values)
			if err != nil {
				return p, err
			}
		}
		*q.dst = v
	}
	return p, nil
}

func qualityRating(mape, pearsonR float64) string {
	if mape < 0.10 && pearsonR > 0.95 {
		return "excellent"
	}
	if mape < 0.20 && pearsonR > 0.85 {
		return "good"
	}
	if mape < 0.35 && pearsonR > 0.70 {
		return "fair"
	}
	return "poor"
}

// WriteYAML writes the calibration as YAML.
func (c *Calibration) WriteYAML(w io.Writer) (err error) {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { err = multierr.Append(err, enc.Close()) }()
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("calibrate: encoding summary: %w", err)
	}
	return nil
}
