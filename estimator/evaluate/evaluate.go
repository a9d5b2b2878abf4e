// Package evaluate drives estimators over recorded traces and emits report rows.
package evaluate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/report"
	"github.com/elasql/txn-estimator/estimator/summax"
)

// TransactionSource is the read side of a recorded trace, indexed by
// transaction number. dataset.TotalLatencyDataSet implements it.
type TransactionSource interface {
	ServerCount() int
	StartTxNum() int64
	EndTxNum() int64
	Features(txNum int64) ([]estimator.FeatureRecord, bool)
	StartTime(txNum int64) (int64, bool)
	RouteAndLatency(txNum int64) (serverID int, latency float64, ok bool)
	Dependencies(txNum int64) []int64
}

// RowSink receives report rows. report.Writer implements it.
type RowSink interface {
	Write(row any) error
}

// Recorder observes evaluation outcomes. metrics.Recorder implements it.
type Recorder interface {
	GapSkipped()
	ObserveRelativeError(predicted, truth float64)
}

// Result summarizes a sum-max evaluation.
type Result struct {
	Evaluated   int
	GapsSkipped int
	Rows        []report.SumMaxRow
}

// DefaultProgressInterval is the number of transactions between progress logs.
const DefaultProgressInterval = 100000

// Option configures SumMax.
type Option func(*options)

type options struct {
	recorder         Recorder
	progressInterval int
	keepRows         bool
}

// WithRecorder reports skipped gaps and prediction errors to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithProgressInterval logs progress every n evaluated transactions.
func WithProgressInterval(n int) Option {
	return func(o *options) { o.progressInterval = n }
}

// WithRows keeps every emitted row in Result.Rows.
func WithRows() Option {
	return func(o *options) { o.keepRows = true }
}

// SumMax walks the source from StartTxNum to EndTxNum in order. Each
// transaction is estimated on every server, committed to its recorded route
// and written to sink. Transactions with missing feature or latency data are
// logged and skipped. Any estimator error aborts the run; ctx is checked
// between transactions.
func SumMax(ctx context.Context, src TransactionSource, est *summax.Estimator, sink RowSink, opts ...Option) (Result, error) {
	o := options{progressInterval: DefaultProgressInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if est.ServerCount() != src.ServerCount() {
		return Result{}, fmt.Errorf("evaluate: estimator has %d servers, data set %d: %w",
			est.ServerCount(), src.ServerCount(), estimator.ErrServerCount)
	}

	var res Result
	for txNum := src.StartTxNum(); txNum <= src.EndTxNum(); txNum++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("evaluate: stopped before tx %d: %w", txNum, err)
		}

		features, ok := src.Features(txNum)
		var start int64
		if ok {
			start, ok = src.StartTime(txNum)
		}
		if !ok {
			skipGap(&res, o.recorder, txNum, "no feature data")
			continue
		}
		route, latency, ok := src.RouteAndLatency(txNum)
		if !ok {
			skipGap(&res, o.recorder, txNum, "no latency data")
			continue
		}

		predictions, err := est.EstimateNext(txNum, src.Dependencies(txNum), start, features)
		if err != nil {
			return res, fmt.Errorf("evaluate: %w", err)
		}
		if err := est.CommitDecision(txNum, route); err != nil {
			return res, fmt.Errorf("evaluate: %w", err)
		}

		row := report.SumMaxRow{TxNum: txNum, Route: route, TrueLatency: latency, Predictions: predictions}
		if err := sink.Write(row); err != nil {
			return res, fmt.Errorf("evaluate: writing tx %d: %w", txNum, err)
		}
		if o.keepRows {
			res.Rows = append(res.Rows, row)
		}
		if o.recorder != nil {
			o.recorder.ObserveRelativeError(predictions[route], latency)
		}

		res.Evaluated++
		if o.progressInterval > 0 && res.Evaluated%o.progressInterval == 0 {
			logrus.Infof("%d transactions are tested", res.Evaluated)
		}
	}
	return res, nil
}

func skipGap(res *Result, rec Recorder, txNum int64, reason string) {
	logrus.WithField("tx", txNum).Warnf("evaluate: %s, skipping", reason)
	res.GapsSkipped++
	if rec != nil {
		rec.GapSkipped()
	}
}
