package summax

import (
	"fmt"

	"github.com/elasql/txn-estimator/estimator"
)

// state is the protocol position of an Estimator. Transitions return the next
// state and never modify the receiver.
type state interface {
	// begin moves to p after a successful estimate.
	begin(p pending) (state, error)
	// decide closes the pending transaction txNum and returns it.
	decide(txNum int64) (pending, state, error)
}

// idle: no transaction waits for a routing decision.
type idle struct{}

// pending: txNum has been estimated and waits for its routing decision.
type pending struct {
	txNum    int64
	endTimes []float64 // absolute completion time per candidate server
	deps     []int64
}

func (idle) begin(p pending) (state, error) {
	return p, nil
}

func (idle) decide(txNum int64) (pending, state, error) {
	return pending{}, idle{}, fmt.Errorf("summax: decision for tx %d: %w", txNum, estimator.ErrNothingPending)
}

func (s pending) begin(p pending) (state, error) {
	return s, fmt.Errorf("summax: estimate of tx %d while tx %d is pending: %w",
		p.txNum, s.txNum, estimator.ErrRouteUndecided)
}

func (s pending) decide(txNum int64) (pending, state, error) {
	if txNum != s.txNum {
		return pending{}, s, fmt.Errorf("summax: decision for tx %d while tx %d is pending: %w",
			txNum, s.txNum, estimator.ErrTxMismatch)
	}
	return s, idle{}, nil
}
