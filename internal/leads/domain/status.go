// Package domain provides core business rules for the leads bounded context:
// the status catalog and the lifecycle state machine that guards every
// status/sub-status transition.
package domain

// Status is a lead's main business status.
type Status string

const (
	StatusNewLead    Status = "NEW_LEAD"
	StatusQuote      Status = "QUOTE"
	StatusProduction Status = "PRODUCTION"
	StatusInvoiced   Status = "INVOICED"
	StatusClosed     Status = "CLOSED"
)

// SubStatus is the finer-grained state within a main status.
type SubStatus string

const (
	SubStatusUncontacted          SubStatus = "UNCONTACTED"
	SubStatusAttemptedContact     SubStatus = "ATTEMPTED_CONTACT"
	SubStatusContacted            SubStatus = "CONTACTED"
	SubStatusAppointmentScheduled SubStatus = "APPOINTMENT_SCHEDULED"
	SubStatusEstimating           SubStatus = "ESTIMATING"
	SubStatusSent                 SubStatus = "SENT"
	SubStatusNegotiating          SubStatus = "NEGOTIATING"
	SubStatusApproved             SubStatus = "APPROVED"
	SubStatusRejected             SubStatus = "REJECTED"
	SubStatusScheduled            SubStatus = "SCHEDULED"
	SubStatusInProgress           SubStatus = "IN_PROGRESS"
	SubStatusOnHold               SubStatus = "ON_HOLD"
	SubStatusCompleted            SubStatus = "COMPLETED"
	SubStatusPartialPayment       SubStatus = "PARTIAL_PAYMENT"
	SubStatusPaid                 SubStatus = "PAID"
	SubStatusOverdue              SubStatus = "OVERDUE"
	SubStatusLost                 SubStatus = "LOST"
	SubStatusCancelled            SubStatus = "CANCELLED"
)

// subStatusSets maps each status to its fixed set of valid sub-statuses.
var subStatusSets = map[Status]map[SubStatus]struct{}{
	StatusNewLead: {
		SubStatusUncontacted:          {},
		SubStatusAttemptedContact:     {},
		SubStatusContacted:            {},
		SubStatusAppointmentScheduled: {},
	},
	StatusQuote: {
		SubStatusEstimating:  {},
		SubStatusSent:        {},
		SubStatusNegotiating: {},
		SubStatusApproved:    {},
		SubStatusRejected:    {},
	},
	StatusProduction: {
		SubStatusScheduled:  {},
		SubStatusInProgress: {},
		SubStatusOnHold:     {},
		SubStatusCompleted:  {},
	},
	StatusInvoiced: {
		SubStatusSent:           {},
		SubStatusPartialPayment: {},
		SubStatusPaid:           {},
		SubStatusOverdue:        {},
	},
	StatusClosed: {
		SubStatusCompleted: {},
		SubStatusLost:      {},
		SubStatusCancelled: {},
	},
}

// defaultSubStatuses maps each status to the sub-status substituted when the
// caller supplies none.
var defaultSubStatuses = map[Status]SubStatus{
	StatusNewLead:    SubStatusUncontacted,
	StatusQuote:      SubStatusEstimating,
	StatusProduction: SubStatusScheduled,
	StatusInvoiced:   SubStatusSent,
	StatusClosed:     SubStatusCompleted,
}

// IsKnownStatus reports whether status is a member of the status catalog.
func IsKnownStatus(status Status) bool {
	_, ok := subStatusSets[status]
	return ok
}

// IsValidPair reports whether subStatus belongs to the sub-status set of status.
func IsValidPair(status Status, subStatus SubStatus) bool {
	set, ok := subStatusSets[status]
	if !ok {
		return false
	}
	_, ok = set[subStatus]
	return ok
}

// DefaultSubStatus returns the default sub-status for a status.
func DefaultSubStatus(status Status) (SubStatus, bool) {
	sub, ok := defaultSubStatuses[status]
	return sub, ok
}

// subStatusOrder fixes the presentation order of each status's sub-statuses.
var subStatusOrder = map[Status][]SubStatus{
	StatusNewLead:    {SubStatusUncontacted, SubStatusAttemptedContact, SubStatusContacted, SubStatusAppointmentScheduled},
	StatusQuote:      {SubStatusEstimating, SubStatusSent, SubStatusNegotiating, SubStatusApproved, SubStatusRejected},
	StatusProduction: {SubStatusScheduled, SubStatusInProgress, SubStatusOnHold, SubStatusCompleted},
	StatusInvoiced:   {SubStatusSent, SubStatusPartialPayment, SubStatusPaid, SubStatusOverdue},
	StatusClosed:     {SubStatusCompleted, SubStatusLost, SubStatusCancelled},
}

// SubStatuses returns the valid sub-statuses of a status in presentation
// order. Unknown statuses return nil.
func SubStatuses(status Status) []SubStatus {
	return subStatusOrder[status]
}

// Statuses returns the catalog's statuses in their conventional forward order.
// The state machine does not enforce this ordering; callers that care about
// progression discipline (the automated transition helpers) rely on it.
func Statuses() []Status {
	return []Status{StatusNewLead, StatusQuote, StatusProduction, StatusInvoiced, StatusClosed}
}
