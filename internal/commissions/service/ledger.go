package service

import (
	"context"
	"time"

	"roofcrm_backend/internal/commissions/domain"
	"roofcrm_backend/internal/commissions/repository"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// ledgerRoles is the fixed iteration order over a lead's role assignments.
var ledgerRoles = []string{"sales_rep", "marketing_rep", "sales_manager", "production_manager"}

// Ledger owns the lifecycle of individual commission rows: creation,
// recalculation, and payment bookkeeping.
type Ledger struct {
	store    Store
	plans    PlanDirectory
	invoices InvoiceSource
	log      *logger.Logger
}

// NewLedger creates a commission ledger.
func NewLedger(store Store, plans PlanDirectory, invoices InvoiceSource, log *logger.Logger) *Ledger {
	return &Ledger{store: store, plans: plans, invoices: invoices, log: log}
}

// WithStore returns a copy of the ledger bound to another store, typically a
// transaction-bound repository.
func (l *Ledger) WithStore(store Store) *Ledger {
	return &Ledger{store: store, plans: l.plans, invoices: l.invoices, log: l.log}
}

// WithSources returns a copy bound to another store and invoice source so
// that both read and write through the same transaction.
func (l *Ledger) WithSources(store Store, invoices InvoiceSource) *Ledger {
	return &Ledger{store: store, plans: l.plans, invoices: invoices, log: l.log}
}

// CreateForLead creates one commission row per role assignment whose user has
// an active commission plan, snapshotting the plan's rule at calculation time.
// Users without a plan are silently skipped; they simply earn nothing here.
func (l *Ledger) CreateForLead(ctx context.Context, organizationID, leadID uuid.UUID, roleAssignments map[string]uuid.UUID, baseAmountCents int64) ([]repository.Commission, error) {
	created := make([]repository.Commission, 0, len(roleAssignments))

	for _, role := range ledgerRoles {
		userID, assigned := roleAssignments[role]
		if !assigned {
			continue
		}

		plan, err := l.plans.ActivePlan(ctx, organizationID, userID)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		amount, err := domain.Calculate(plan.CommissionType, plan.CommissionRate, plan.FlatAmountCents, baseAmountCents)
		if err != nil {
			return nil, err
		}

		commission, err := l.store.Create(ctx, repository.CreateParams{
			OrganizationID:        organizationID,
			LeadID:                leadID,
			UserID:                userID,
			PlanID:                plan.ID,
			Role:                  role,
			CommissionType:        plan.CommissionType,
			CommissionRate:        plan.CommissionRate,
			FlatAmountCents:       plan.FlatAmountCents,
			BaseAmountCents:       baseAmountCents,
			CalculatedAmountCents: amount,
			PaidWhen:              plan.PaidWhen,
		})
		if err != nil {
			return nil, err
		}
		if l.log != nil {
			l.log.CommissionEvent("created", commission.ID.String(), amount)
		}
		created = append(created, commission)
	}

	return created, nil
}

// Recalculate re-reads each earner's current plan (not the snapshot) and
// recomputes every non-cancelled commission on the lead against the lead's
// current invoice total. Rows are persisted only when a tracked field (type,
// rate, flat amount, calculated amount) actually changed, which makes the
// operation idempotent and safe to repeat. Returns the number of rows written.
func (l *Ledger) Recalculate(ctx context.Context, organizationID, leadID uuid.UUID) (int, error) {
	baseAmountCents, _, err := l.invoices.InvoiceTotals(ctx, organizationID, leadID)
	if err != nil {
		return 0, err
	}

	commissions, err := l.store.ListActiveByLead(ctx, organizationID, leadID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, commission := range commissions {
		plan, err := l.plans.ActivePlan(ctx, organizationID, commission.UserID)
		if apperr.Is(err, apperr.KindNotFound) {
			// Earner lost their plan mid-cycle; leave the snapshot as is.
			continue
		}
		if err != nil {
			return updated, err
		}

		amount, err := domain.Calculate(plan.CommissionType, plan.CommissionRate, plan.FlatAmountCents, baseAmountCents)
		if err != nil {
			return updated, err
		}

		unchanged := commission.CommissionType == plan.CommissionType &&
			commission.CommissionRate == plan.CommissionRate &&
			commission.FlatAmountCents == plan.FlatAmountCents &&
			commission.CalculatedAmountCents == amount
		if unchanged {
			continue
		}

		err = l.store.UpdateSnapshot(ctx, commission.ID, repository.SnapshotParams{
			PlanID:                plan.ID,
			CommissionType:        plan.CommissionType,
			CommissionRate:        plan.CommissionRate,
			FlatAmountCents:       plan.FlatAmountCents,
			BaseAmountCents:       baseAmountCents,
			CalculatedAmountCents: amount,
			BalanceOwedCents:      domain.Balance(amount, commission.PaidAmountCents),
		})
		if err != nil {
			return updated, err
		}
		if l.log != nil {
			l.log.CommissionEvent("recalculated", commission.ID.String(), amount)
		}
		updated++
	}

	return updated, nil
}

// RecordPayment applies a payment against one commission. When amountCents is
// nil the full remaining balance is paid. A payment that reaches the
// calculated amount settles the row as paid; a partial payment resets the
// status to pending, deliberately discarding an earlier eligible or approved
// designation (markPaid is the entry point that never runs partial logic).
func (l *Ledger) RecordPayment(ctx context.Context, organizationID, commissionID, paidBy uuid.UUID, amountCents *int64, notes *string) (repository.Commission, error) {
	commission, err := l.store.GetByID(ctx, organizationID, commissionID)
	if err != nil {
		return repository.Commission{}, err
	}
	if commission.Status == domain.StatusCancelled {
		return repository.Commission{}, apperr.InvalidState("commission is cancelled")
	}

	payment := commission.BalanceOwedCents
	if amountCents != nil {
		payment = *amountCents
	}
	if payment <= 0 {
		return repository.Commission{}, apperr.Validation("payment amount must be positive")
	}

	newPaid := commission.PaidAmountCents + payment
	newBalance := domain.Balance(commission.CalculatedAmountCents, newPaid)

	params := repository.PaymentParams{
		PaidAmountCents:  newPaid,
		BalanceOwedCents: newBalance,
		Notes:            notes,
	}
	if newPaid >= commission.CalculatedAmountCents {
		now := time.Now()
		params.Status = domain.StatusPaid
		params.PaidBy = &paidBy
		params.PaidDate = &now
	} else {
		params.Status = domain.StatusPending
	}

	if err := l.store.ApplyPayment(ctx, commission.ID, params); err != nil {
		return repository.Commission{}, err
	}
	if l.log != nil {
		l.log.CommissionEvent("payment_recorded", commission.ID.String(), payment)
	}

	commission.PaidAmountCents = newPaid
	commission.BalanceOwedCents = newBalance
	commission.Status = params.Status
	commission.PaidBy = params.PaidBy
	commission.PaidDate = params.PaidDate
	return commission, nil
}

// MarkEligible flips the lead's pending commissions whose paid_when matches
// the trigger to eligible. Invoked by the billing bridge as part of its
// transactional unit.
func (l *Ledger) MarkEligible(ctx context.Context, organizationID, leadID uuid.UUID, trigger domain.PaidWhen) ([]repository.Commission, error) {
	return l.store.MarkEligibleByTrigger(ctx, organizationID, leadID, trigger)
}

// ListByLead returns the lead's ledger lines.
func (l *Ledger) ListByLead(ctx context.Context, organizationID, leadID uuid.UUID) ([]repository.Commission, error) {
	return l.store.ListByLead(ctx, organizationID, leadID)
}

// OutstandingBalance sums the balance still owed across the lead's active
// commissions. The billing bridge uses it to decide whether a fully paid
// invoice may close the lead.
func (l *Ledger) OutstandingBalance(ctx context.Context, organizationID, leadID uuid.UUID) (int64, error) {
	commissions, err := l.store.ListActiveByLead(ctx, organizationID, leadID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, commission := range commissions {
		if commission.Status != domain.StatusPaid {
			total += commission.BalanceOwedCents
		}
	}
	return total, nil
}

// Cancel moves one commission to the cancelled dead-end. Paid commissions
// cannot be cancelled.
func (l *Ledger) Cancel(ctx context.Context, organizationID, commissionID uuid.UUID) error {
	commission, err := l.store.GetByID(ctx, organizationID, commissionID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(commission.Status, domain.StatusCancelled) {
		return apperr.InvalidState("commission cannot be cancelled from status " + string(commission.Status))
	}
	ok, err := l.store.Cancel(ctx, organizationID, commissionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidState("commission cannot be cancelled")
	}
	return nil
}
