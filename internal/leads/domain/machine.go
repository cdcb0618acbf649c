package domain

import (
	"fmt"

	"roofcrm_backend/platform/apperr"
)

// TransitionCheck is the result of validating a lifecycle transition.
type TransitionCheck struct {
	// TargetStatus echoes the validated target status.
	TargetStatus Status
	// TargetSubStatus is the resolved sub-status: the one supplied by the
	// caller, or the status default when none was supplied.
	TargetSubStatus SubStatus
	// RequiresPermission names the permission the acting user must hold, when
	// the transition is guarded. Empty otherwise.
	RequiresPermission Permission
}

// ValidateTransition checks a status/sub-status transition for one lead.
//
// An empty targetSubStatus selects the status's default sub-status. The
// machine deliberately does not enforce status ordering: any status is
// reachable as long as its sub-status is valid. Progression discipline lives
// in the automated transition helpers, not here.
func ValidateTransition(currentStatus Status, currentSubStatus SubStatus, targetStatus Status, targetSubStatus SubStatus) (TransitionCheck, error) {
	if !IsKnownStatus(targetStatus) {
		return TransitionCheck{}, apperr.Validation(fmt.Sprintf("unknown status %q", targetStatus))
	}

	resolved := targetSubStatus
	if resolved == "" {
		resolved, _ = DefaultSubStatus(targetStatus)
	} else if !IsValidPair(targetStatus, resolved) {
		return TransitionCheck{}, apperr.Validation(
			fmt.Sprintf("sub-status %q is not valid for status %q", resolved, targetStatus),
		).WithDetails(map[string]any{
			"code":      "INVALID_SUB_STATUS",
			"status":    targetStatus,
			"subStatus": resolved,
		})
	}

	check := TransitionCheck{
		TargetStatus:    targetStatus,
		TargetSubStatus: resolved,
	}
	if perm, ok := RequiredPermission(targetStatus, resolved); ok {
		check.RequiresPermission = perm
	}
	return check, nil
}

// IsTerminal reports whether a lead in the given status has left the active
// pipeline. Closed leads must not be processed by automated transitions.
func IsTerminal(status Status) bool {
	return status == StatusClosed
}
