package domain

// Permission names a capability the acting user must hold before a guarded
// transition may be applied. The lifecycle service reports the requirement;
// verifying it is the caller's responsibility.
type Permission string

const (
	PermissionCloseLead          Permission = "can_close_leads"
	PermissionApproveQuote       Permission = "can_approve_quotes"
	PermissionRecordPayments     Permission = "can_record_payments"
	PermissionApproveCommissions Permission = "can_approve_commissions"
)

// SubStatusWildcard matches any sub-status of a status in the permission table.
const SubStatusWildcard SubStatus = "*"

type transitionKey struct {
	status    Status
	subStatus SubStatus
}

// transitionPermissions guards sensitive transitions. Exact (status, sub-status)
// entries take precedence over (status, wildcard) entries.
var transitionPermissions = map[transitionKey]Permission{
	{StatusQuote, SubStatusApproved}: PermissionApproveQuote,
	{StatusInvoiced, SubStatusPaid}:  PermissionRecordPayments,
	{StatusClosed, SubStatusWildcard}: PermissionCloseLead,
}

// RequiredPermission resolves the permission guarding a transition into the
// given (status, subStatus) pair, trying the exact pair first and the status
// wildcard second. The second return is false when the transition is unguarded.
func RequiredPermission(status Status, subStatus SubStatus) (Permission, bool) {
	if perm, ok := transitionPermissions[transitionKey{status, subStatus}]; ok {
		return perm, true
	}
	perm, ok := transitionPermissions[transitionKey{status, SubStatusWildcard}]
	return perm, ok
}
