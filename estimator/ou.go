package estimator

// Operation unit names, as they appear in latency table headers.
const (
	OUBroadcast    = "OU0 - Broadcast"
	OURoute        = "OU0 - ROUTE"
	OUGeneratePlan = "OU1 - Generate Plan"
	OUInitThread   = "OU2 - Initialize Thread"
	OUAcquireLocks = "OU3 - Acquire Locks"
	OUReadLocal    = "OU4 - Read from Local"
	OUReadRemote   = "OU5M - Read from Remote"
	OUExecute      = "OU6 - Execute Arithmetic Logic"
	OUWriteLocal   = "OU7 - Write to Local"
	OUCommit       = "OU8 - Commit"
)

// OUNames lists every operation unit in execution order.
var OUNames = []string{
	OUBroadcast,
	OURoute,
	OUGeneratePlan,
	OUInitThread,
	OUAcquireLocks,
	OUReadLocal,
	OUReadRemote,
	OUExecute,
	OUWriteLocal,
	OUCommit,
}

// PreBarrierOUs are summed from the transaction start up to lock acquisition.
var PreBarrierOUs = []string{OUBroadcast, OURoute, OUGeneratePlan, OUInitThread}

// PostBarrierOUs are summed after the transaction passes lock acquisition.
// Lock acquisition itself is not predicted; it is replaced by the dependency barrier.
var PostBarrierOUs = []string{OUReadLocal, OUReadRemote, OUExecute, OUWriteLocal, OUCommit}

var validOUNames = func() map[string]bool {
	m := make(map[string]bool, len(OUNames))
	for _, name := range OUNames {
		m[name] = true
	}
	return m
}()

// IsValidOU returns true if name is a recognized operation unit.
func IsValidOU(name string) bool {
	return validOUNames[name]
}
