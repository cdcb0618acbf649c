package domain

import (
	"testing"

	"roofcrm_backend/platform/apperr"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		name            string
		commissionType  Type
		rate            float64
		flatAmountCents int64
		baseAmountCents int64
		want            int64
		wantErr         bool
	}{
		{"percentage whole", TypePercentage, 10, 0, 250000, 25000, false},
		{"percentage fractional rate", TypePercentage, 7.5, 0, 100000, 7500, false},
		{"percentage rounds to nearest cent", TypePercentage, 3.33, 0, 1000, 33, false},
		{"percentage zero base", TypePercentage, 10, 0, 0, 0, false},
		{"flat ignores base", TypeFlatAmount, 0, 50000, 999999, 50000, false},
		{"custom uses flat value", TypeCustom, 12, 75000, 100000, 75000, false},
		{"unknown type", Type("equity"), 10, 500, 100000, 0, true},
	}

	for _, tc := range cases {
		got, err := Calculate(tc.commissionType, tc.rate, tc.flatAmountCents, tc.baseAmountCents)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			} else if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("%s: expected validation error, got %v", tc.name, err)
			}
			if got != 0 {
				t.Errorf("%s: unknown type must yield 0, got %d", tc.name, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestBalanceDoesNotClamp(t *testing.T) {
	if got := Balance(100000, 40000); got != 60000 {
		t.Fatalf("expected 60000, got %d", got)
	}
	if got := Balance(100000, 100000); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	// Overpayment surfaces as a negative balance.
	if got := Balance(100000, 120000); got != -20000 {
		t.Fatalf("expected -20000, got %d", got)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusEligible},
		{StatusEligible, StatusApproved},
		{StatusApproved, StatusPaid},
		{StatusPending, StatusCancelled},
		{StatusEligible, StatusCancelled},
		{StatusApproved, StatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusApproved},
		{StatusPending, StatusPaid},
		{StatusEligible, StatusPaid},
		{StatusPaid, StatusCancelled},
		{StatusPaid, StatusApproved},
		{StatusCancelled, StatusEligible},
		{StatusApproved, StatusEligible},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !IsTerminal(StatusPaid) || !IsTerminal(StatusCancelled) {
		t.Fatal("paid and cancelled must be terminal")
	}
	if IsTerminal(StatusPending) || IsTerminal(StatusEligible) || IsTerminal(StatusApproved) {
		t.Fatal("active statuses must not be terminal")
	}
}
