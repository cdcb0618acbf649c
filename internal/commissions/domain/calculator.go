// Package domain provides core business rules for the commissions bounded
// context: the pure commission calculator and the ledger status machine.
package domain

import (
	"fmt"
	"math"

	"roofcrm_backend/platform/apperr"
)

// Type is how a commission plan computes its amount.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFlatAmount Type = "flat_amount"
	TypeCustom     Type = "custom"
)

// PaidWhen is the business event that makes a commission eligible for approval.
type PaidWhen string

const (
	PaidWhenDepositPaid    PaidWhen = "when_deposit_paid"
	PaidWhenFinalPayment   PaidWhen = "when_final_payment"
	PaidWhenJobCompleted   PaidWhen = "when_job_completed"
	PaidWhenInvoiceCreated PaidWhen = "when_invoice_created"
)

// Calculate converts a plan's rule and a base amount into a commission amount
// in cents. Percentage plans earn base × rate/100, rounded to the nearest
// cent; flat and custom plans earn the flat value verbatim, ignoring the base.
// An unknown type yields 0 and a typed error the caller must not swallow.
func Calculate(commissionType Type, rate float64, flatAmountCents, baseAmountCents int64) (int64, error) {
	switch commissionType {
	case TypePercentage:
		return int64(math.Round(float64(baseAmountCents) * rate / 100.0)), nil
	case TypeFlatAmount, TypeCustom:
		return flatAmountCents, nil
	default:
		return 0, apperr.Validation(fmt.Sprintf("unknown commission type %q", commissionType)).
			WithDetails(map[string]any{"code": "UNKNOWN_COMMISSION_TYPE"})
	}
}

// Balance derives the amount still owed. The result is not clamped: an
// overpaid commission reports a negative balance, and callers decide what to
// do with that.
func Balance(calculatedAmountCents, paidAmountCents int64) int64 {
	return calculatedAmountCents - paidAmountCents
}
