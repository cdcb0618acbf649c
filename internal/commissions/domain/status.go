package domain

// Status is a commission ledger line's settlement state.
type Status string

const (
	// StatusPending is the default: awaiting the plan's trigger event.
	StatusPending Status = "pending"
	// StatusEligible means the configured paid_when trigger has fired.
	StatusEligible Status = "eligible"
	// StatusApproved means a permissioned user approved the payout.
	StatusApproved Status = "approved"
	// StatusPaid is terminal: the commission is fully settled.
	StatusPaid Status = "paid"
	// StatusCancelled is a terminal dead-end reachable from any non-paid
	// state; cancelled rows are excluded from recalculation.
	StatusCancelled Status = "cancelled"
)

// statusTransitions is the forward-only approval path. Partial payments
// recorded through the ledger deliberately sidestep this table (they reset a
// commission toward pending); every other mutation must respect it.
var statusTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusEligible: true, StatusCancelled: true},
	StatusEligible:  {StatusApproved: true, StatusCancelled: true},
	StatusApproved:  {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

// CanTransition reports whether the approval workflow may move a commission
// from one status to another.
func CanTransition(from, to Status) bool {
	next, ok := statusTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether no further workflow transitions exist.
func IsTerminal(status Status) bool {
	return len(statusTransitions[status]) == 0
}
