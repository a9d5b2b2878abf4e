// Package summax implements the sequential sum-max latency estimator.
//
// Transactions are fed one at a time in increasing transaction number. For each
// one, EstimateNext predicts a completion time on every candidate server: the
// pre-lock operation units are summed from the start time, the result is raised
// to the latest completion time of the transaction's dependencies (the barrier),
// and the post-lock operation units are summed on top. The caller then picks a
// server and reports it with CommitDecision; only the chosen completion time is
// remembered for later dependents.
package summax

import (
	"fmt"

	"github.com/elasql/txn-estimator/estimator"
)

// Observer is notified of estimator progress. Calls are synchronous.
type Observer interface {
	Estimated(txNum int64)
	Committed(txNum int64, live int)
	Evicted(n int)
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithDependentCounts enables eviction of resolved end times. counts maps each
// transaction to the number of transactions that depend on it (see
// deps.Graph.DependentCounts). An entry is dropped once all its dependents have
// been committed, and a transaction nobody depends on is never stored.
func WithDependentCounts(counts map[int64]int) Option {
	return func(e *Estimator) {
		e.remaining = make(map[int64]int, len(counts))
		for tx, n := range counts {
			if n > 0 {
				e.remaining[tx] = n
			}
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Estimator) { e.observer = o }
}

// Estimator is the two-phase sum-max estimator. It is not safe for concurrent use.
type Estimator struct {
	predictor   estimator.Predictor
	serverCount int

	state         state
	started       bool
	lastEstimated int64

	resolved  map[int64]float64 // txNum -> absolute completion time on the chosen server
	remaining map[int64]int     // dependents not yet committed; nil disables eviction
	observer  Observer
}

// New creates an idle estimator over serverCount candidate servers.
func New(p estimator.Predictor, serverCount int, opts ...Option) (*Estimator, error) {
	if p == nil {
		return nil, fmt.Errorf("summax: nil predictor")
	}
	if serverCount < 1 {
		return nil, fmt.Errorf("summax: server count must be >= 1, got %d", serverCount)
	}
	e := &Estimator{
		predictor:   p,
		serverCount: serverCount,
		state:       idle{},
		resolved:    make(map[int64]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EstimateNext predicts the latency of txNum on every candidate server and
// returns one duration per server. The estimator then waits for
// CommitDecision(txNum, ...); on error its state is unchanged.
func (e *Estimator) EstimateNext(txNum int64, dependencies []int64, startTime int64, features []estimator.FeatureRecord) ([]float64, error) {
	if _, err := e.state.begin(pending{txNum: txNum}); err != nil {
		return nil, err
	}
	if e.started && txNum <= e.lastEstimated {
		return nil, fmt.Errorf("summax: tx %d after tx %d: %w", txNum, e.lastEstimated, estimator.ErrOutOfOrder)
	}
	if len(features) != e.serverCount {
		return nil, fmt.Errorf("summax: tx %d has features for %d servers, expected %d: %w",
			txNum, len(features), e.serverCount, estimator.ErrServerCount)
	}

	barrier, err := e.barrier(txNum, dependencies)
	if err != nil {
		return nil, err
	}

	start := float64(startTime)
	endTimes := make([]float64, e.serverCount)
	durations := make([]float64, e.serverCount)
	for serverID, rec := range features {
		pre, err := estimator.SumPredictions(e.predictor, estimator.PreBarrierOUs, serverID, rec)
		if err != nil {
			return nil, fmt.Errorf("summax: tx %d server %d: %w", txNum, serverID, err)
		}
		post, err := estimator.SumPredictions(e.predictor, estimator.PostBarrierOUs, serverID, rec)
		if err != nil {
			return nil, fmt.Errorf("summax: tx %d server %d: %w", txNum, serverID, err)
		}
		barrierEnd := max(barrier, start+pre)
		endTimes[serverID] = barrierEnd + post
		durations[serverID] = endTimes[serverID] - start
	}

	next, err := e.state.begin(pending{txNum: txNum, endTimes: endTimes, deps: uniq(dependencies)})
	if err != nil {
		return nil, err
	}
	e.state = next
	e.started = true
	e.lastEstimated = txNum
	if e.observer != nil {
		e.observer.Estimated(txNum)
	}
	return durations, nil
}

// barrier returns the latest resolved completion time among dependencies, or 0.
func (e *Estimator) barrier(txNum int64, dependencies []int64) (float64, error) {
	var barrier float64
	for _, d := range dependencies {
		end, ok := e.resolved[d]
		if !ok {
			return 0, fmt.Errorf("summax: tx %d depends on tx %d: %w", txNum, d, estimator.ErrUnresolvedDependency)
		}
		barrier = max(barrier, end)
	}
	return barrier, nil
}

// CommitDecision records that the pending transaction txNum was routed to
// chosenServerID and returns the estimator to idle.
func (e *Estimator) CommitDecision(txNum int64, chosenServerID int) error {
	if p, ok := e.state.(pending); ok && p.txNum == txNum &&
		(chosenServerID < 0 || chosenServerID >= e.serverCount) {
		return fmt.Errorf("summax: tx %d routed to server %d of %d: %w",
			txNum, chosenServerID, e.serverCount, estimator.ErrServerCount)
	}
	p, next, err := e.state.decide(txNum)
	if err != nil {
		return err
	}
	e.state = next

	evicted := e.release(p.deps)
	if e.remaining == nil || e.remaining[txNum] > 0 {
		e.resolved[txNum] = p.endTimes[chosenServerID]
	}
	if e.observer != nil {
		if evicted > 0 {
			e.observer.Evicted(evicted)
		}
		e.observer.Committed(txNum, len(e.resolved))
	}
	return nil
}

// release consumes one dependent reference of each dependency and evicts the
// entries nobody else waits for. Returns the number of evicted entries.
func (e *Estimator) release(dependencies []int64) int {
	if e.remaining == nil {
		return 0
	}
	evicted := 0
	for _, d := range dependencies {
		n, tracked := e.remaining[d]
		if !tracked {
			continue
		}
		if n > 1 {
			e.remaining[d] = n - 1
			continue
		}
		delete(e.remaining, d)
		if _, ok := e.resolved[d]; ok {
			delete(e.resolved, d)
			evicted++
		}
	}
	return evicted
}

// PredictOuLatency passes a single OU prediction through to the predictor.
func (e *Estimator) PredictOuLatency(ou string, serverID int, rec estimator.FeatureRecord) (float64, error) {
	if !estimator.IsValidOU(ou) {
		return 0, fmt.Errorf("summax: %w %q", estimator.ErrUnknownOU, ou)
	}
	return e.predictor.Predict(ou, serverID, rec)
}

// ResolvedEndTime returns the completion time remembered for txNum.
func (e *Estimator) ResolvedEndTime(txNum int64) (float64, bool) {
	end, ok := e.resolved[txNum]
	return end, ok
}

// Resolved returns the number of remembered completion times.
func (e *Estimator) Resolved() int { return len(e.resolved) }

// Pending returns the transaction waiting for a routing decision and its
// absolute completion time per server; ok is false when the estimator is idle.
func (e *Estimator) Pending() (txNum int64, endTimes []float64, ok bool) {
	p, ok := e.state.(pending)
	if !ok {
		return 0, nil, false
	}
	return p.txNum, append([]float64(nil), p.endTimes...), true
}

// ServerCount returns the number of candidate servers.
func (e *Estimator) ServerCount() int { return e.serverCount }

func uniq(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
