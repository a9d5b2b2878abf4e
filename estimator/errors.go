package estimator

import "errors"

// Protocol violations: the caller fed the sequential estimator in an illegal order.
var (
	// ErrOutOfOrder means a transaction was estimated with a number not greater
	// than the last estimated one.
	ErrOutOfOrder = errors.New("transactions must be estimated in increasing order")
	// ErrRouteUndecided means a new transaction was estimated while the previous
	// one still waits for its routing decision.
	ErrRouteUndecided = errors.New("route of the previous transaction has not been decided")
	// ErrTxMismatch means a routing decision names a transaction other than the pending one.
	ErrTxMismatch = errors.New("routing decision does not match the pending transaction")
	// ErrNothingPending means a routing decision arrived with no estimated transaction pending.
	ErrNothingPending = errors.New("no transaction is pending a routing decision")
)

// ErrUnresolvedDependency means a transaction depends on one whose completion
// time was never resolved, i.e. the stream is not in causal order.
var ErrUnresolvedDependency = errors.New("dependency has no resolved end time")

// ErrServerCount means a per-server argument does not match the configured number of servers.
var ErrServerCount = errors.New("server count mismatch")

// ErrUnknownOU means an operation unit name is not recognized.
var ErrUnknownOU = errors.New("unknown operation unit")

// IsFatal reports whether err belongs to an error class that must abort an
// estimation run instead of being skipped.
func IsFatal(err error) bool {
	for _, target := range []error{
		ErrOutOfOrder, ErrRouteUndecided, ErrTxMismatch, ErrNothingPending,
		ErrUnresolvedDependency, ErrServerCount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
