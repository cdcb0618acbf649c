package domain

import (
	"testing"

	"roofcrm_backend/platform/apperr"
)

func TestValidateTransitionDefaultSubStatusSubstitution(t *testing.T) {
	check, err := ValidateTransition(StatusNewLead, SubStatusUncontacted, StatusQuote, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.TargetStatus != StatusQuote {
		t.Fatalf("expected target status QUOTE, got %s", check.TargetStatus)
	}
	if check.TargetSubStatus != SubStatusEstimating {
		t.Fatalf("expected default sub-status ESTIMATING, got %s", check.TargetSubStatus)
	}
	if check.RequiresPermission != "" {
		t.Fatalf("expected no permission requirement, got %s", check.RequiresPermission)
	}
}

func TestValidateTransitionRejectsForeignSubStatus(t *testing.T) {
	cases := []struct {
		target Status
		sub    SubStatus
	}{
		{StatusQuote, SubStatusPartialPayment},
		{StatusNewLead, SubStatusEstimating},
		{StatusProduction, SubStatusPaid},
		{StatusClosed, SubStatusUncontacted},
	}

	for _, tc := range cases {
		_, err := ValidateTransition(StatusNewLead, SubStatusUncontacted, tc.target, tc.sub)
		if err == nil {
			t.Fatalf("expected error for %s/%s", tc.target, tc.sub)
		}
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("expected validation error for %s/%s, got %v", tc.target, tc.sub, err)
		}
	}
}

func TestValidateTransitionRejectsUnknownStatus(t *testing.T) {
	_, err := ValidateTransition(StatusNewLead, SubStatusUncontacted, Status("DEMOLITION"), "")
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateTransitionAllowsOutOfOrderJumps(t *testing.T) {
	// Status ordering is caller discipline, not a machine rule. A jump from
	// NEW_LEAD straight to INVOICED is accepted as long as the pair is valid.
	check, err := ValidateTransition(StatusNewLead, SubStatusUncontacted, StatusInvoiced, SubStatusSent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.TargetSubStatus != SubStatusSent {
		t.Fatalf("expected SENT, got %s", check.TargetSubStatus)
	}
}

func TestValidateTransitionReportsPermissionRequirement(t *testing.T) {
	cases := []struct {
		target Status
		sub    SubStatus
		want   Permission
	}{
		{StatusQuote, SubStatusApproved, PermissionApproveQuote},
		{StatusInvoiced, SubStatusPaid, PermissionRecordPayments},
		// Wildcard entry: every CLOSED sub-status is guarded.
		{StatusClosed, SubStatusCompleted, PermissionCloseLead},
		{StatusClosed, SubStatusLost, PermissionCloseLead},
		{StatusClosed, "", PermissionCloseLead},
	}

	for _, tc := range cases {
		check, err := ValidateTransition(StatusProduction, SubStatusCompleted, tc.target, tc.sub)
		if err != nil {
			t.Fatalf("unexpected error for %s/%s: %v", tc.target, tc.sub, err)
		}
		if check.RequiresPermission != tc.want {
			t.Errorf("transition to %s/%s: expected permission %s, got %q",
				tc.target, tc.sub, tc.want, check.RequiresPermission)
		}
	}
}

func TestRequiredPermissionExactBeforeWildcard(t *testing.T) {
	perm, ok := RequiredPermission(StatusInvoiced, SubStatusPaid)
	if !ok || perm != PermissionRecordPayments {
		t.Fatalf("expected exact match can_record_payments, got %q (ok=%v)", perm, ok)
	}

	if _, ok := RequiredPermission(StatusInvoiced, SubStatusOverdue); ok {
		t.Fatal("INVOICED/OVERDUE should not be guarded")
	}
}

func TestDefaultSubStatusCoversEveryStatus(t *testing.T) {
	for _, status := range Statuses() {
		sub, ok := DefaultSubStatus(status)
		if !ok {
			t.Fatalf("status %s has no default sub-status", status)
		}
		if !IsValidPair(status, sub) {
			t.Fatalf("default sub-status %s is not in the set for %s", sub, status)
		}
	}
}
