package service

import (
	"context"
	"fmt"
	"time"

	"roofcrm_backend/internal/billing/repository"
	commissiondomain "roofcrm_backend/internal/commissions/domain"
	commissionrepo "roofcrm_backend/internal/commissions/repository"
	"roofcrm_backend/internal/events"
	leaddomain "roofcrm_backend/internal/leads/domain"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// Bridge ties billing moments to their downstream effects. Issuing an invoice
// moves the lead to INVOICED and seeds the commission ledger; a recorded
// payment updates the lead's payment sub-status, fires commission payout
// triggers, and closes the lead once everything is settled. Each entry point
// runs its database work in a single transaction; events publish only after
// commit.
type Bridge struct {
	runner TxRunner
	dedupe DedupeStore
	bus    events.Bus
	log    *logger.Logger
}

func NewBridge(runner TxRunner, dedupe DedupeStore, bus events.Bus, log *logger.Logger) *Bridge {
	return &Bridge{runner: runner, dedupe: dedupe, bus: bus, log: log}
}

// InvoiceResult reports what an issued invoice set in motion.
type InvoiceResult struct {
	Invoice             repository.Invoice       `json:"invoice"`
	CommissionsCreated  int                      `json:"commissionsCreated"`
	CommissionsEligible []commissionrepo.Commission `json:"-"`
}

// OnInvoiceCreated issues an invoice and, atomically with it, transitions the
// lead to INVOICED, seeds commission rows for the lead's role assignments
// (or recalculates existing ones against the new invoice total), and flips
// invoice-triggered commissions eligible.
func (b *Bridge) OnInvoiceCreated(ctx context.Context, params CreateInvoiceParams) (InvoiceResult, error) {
	if params.TotalCents <= 0 {
		return InvoiceResult{}, apperr.Validation("invoice total must be positive")
	}
	if params.InvoiceNumber == "" {
		return InvoiceResult{}, apperr.Validation("invoice number is required")
	}

	var result InvoiceResult
	err := b.runner.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		invoice, err := stores.Invoices.CreateInvoice(ctx, repository.CreateInvoiceParams{
			OrganizationID: params.OrganizationID,
			LeadID:         params.LeadID,
			InvoiceNumber:  params.InvoiceNumber,
			TotalCents:     params.TotalCents,
			IssuedAt:       time.Now().UTC(),
			DueDate:        params.DueDate,
		})
		if err != nil {
			return err
		}
		result.Invoice = invoice

		before, err := stores.Lifecycle.Get(ctx, params.OrganizationID, params.LeadID)
		if err != nil {
			return err
		}
		jobDone := before.SubStatus != nil && *before.SubStatus == leaddomain.SubStatusCompleted

		lead, err := stores.Lifecycle.AfterInvoiceCreated(ctx, params.OrganizationID, params.LeadID, invoice.ID)
		if err != nil {
			return err
		}

		totalCents, _, err := stores.Invoices.InvoiceTotals(ctx, params.OrganizationID, params.LeadID)
		if err != nil {
			return err
		}

		existing, err := stores.Ledger.ListByLead(ctx, params.OrganizationID, params.LeadID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			created, err := stores.Ledger.CreateForLead(ctx, params.OrganizationID, params.LeadID,
				lead.RoleAssignments(), totalCents)
			if err != nil {
				return err
			}
			result.CommissionsCreated = len(created)
		} else {
			// A follow-up invoice changes the base amount.
			if _, err := stores.Ledger.Recalculate(ctx, params.OrganizationID, params.LeadID); err != nil {
				return err
			}
		}

		eligible, err := stores.Ledger.MarkEligible(ctx, params.OrganizationID, params.LeadID,
			commissiondomain.PaidWhenInvoiceCreated)
		if err != nil {
			return err
		}
		result.CommissionsEligible = eligible

		// Rows seeded just now would miss a completion trigger that already
		// fired, so replay it when the job was done before invoicing.
		if jobDone {
			alsoEligible, err := stores.Ledger.MarkEligible(ctx, params.OrganizationID, params.LeadID,
				commissiondomain.PaidWhenJobCompleted)
			if err != nil {
				return err
			}
			result.CommissionsEligible = append(result.CommissionsEligible, alsoEligible...)
		}
		return nil
	})
	if err != nil {
		return InvoiceResult{}, err
	}

	b.publish(ctx, events.InvoiceCreated{
		BaseEvent:      events.NewBaseEvent(),
		InvoiceID:      result.Invoice.ID,
		LeadID:         params.LeadID,
		OrganizationID: params.OrganizationID,
		InvoiceNumber:  params.InvoiceNumber,
		TotalCents:     params.TotalCents,
	})
	b.publishEligible(ctx, params.OrganizationID, params.LeadID,
		commissiondomain.PaidWhenInvoiceCreated, result.CommissionsEligible)
	return result, nil
}

// OnJobCompleted marks the production work finished and releases
// completion-triggered commissions.
func (b *Bridge) OnJobCompleted(ctx context.Context, organizationID, leadID uuid.UUID) error {
	var eligible []commissionrepo.Commission
	err := b.runner.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		if _, err := stores.Lifecycle.AfterJobCompleted(ctx, organizationID, leadID); err != nil {
			return err
		}
		var err error
		eligible, err = stores.Ledger.MarkEligible(ctx, organizationID, leadID,
			commissiondomain.PaidWhenJobCompleted)
		return err
	})
	if err != nil {
		return err
	}
	b.publishEligible(ctx, organizationID, leadID, commissiondomain.PaidWhenJobCompleted, eligible)
	return nil
}

// PaymentResult reports the state after one recorded payment.
type PaymentResult struct {
	Payment               repository.Payment `json:"payment"`
	BalanceRemainingCents int64              `json:"balanceRemainingCents"`
	PaidInFull            bool               `json:"paidInFull"`
	LeadStatus            string             `json:"leadStatus"`
	LeadSubStatus         string             `json:"leadSubStatus"`
}

// OnPaymentRecorded records a customer payment and, atomically with it,
// advances the lead's payment sub-status and fires commission payout
// triggers. The first payment on a lead releases deposit-triggered
// commissions; a payment that clears the balance releases final-payment
// commissions. Duplicate submissions for the same invoice and reference are
// dropped before any database work.
func (b *Bridge) OnPaymentRecorded(ctx context.Context, params RecordPaymentParams) (PaymentResult, error) {
	if params.AmountCents <= 0 {
		return PaymentResult{}, apperr.Validation("payment amount must be positive")
	}

	claimRef := params.Reference
	if claimRef == "" {
		claimRef = fmt.Sprintf("%d@%d", params.AmountCents, params.ReceivedAt.Unix())
	}
	claimed, err := b.dedupe.Claim(ctx, params.InvoiceID, claimRef)
	if err != nil {
		return PaymentResult{}, err
	}
	if !claimed {
		return PaymentResult{}, apperr.Conflict("payment already recorded")
	}

	var (
		result               PaymentResult
		leadID               uuid.UUID
		eligibleDeposit      []commissionrepo.Commission
		eligibleFinalPayment []commissionrepo.Commission
	)
	err = b.runner.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		invoice, err := stores.Invoices.GetInvoice(ctx, params.OrganizationID, params.InvoiceID)
		if err != nil {
			return err
		}
		leadID = invoice.LeadID

		var reference *string
		if params.Reference != "" {
			reference = &params.Reference
		}
		payment, err := stores.Invoices.AddPayment(ctx, repository.AddPaymentParams{
			InvoiceID:     invoice.ID,
			AmountCents:   params.AmountCents,
			PaymentMethod: params.PaymentMethod,
			Reference:     reference,
			RecordedBy:    params.RecordedBy,
			ReceivedAt:    params.ReceivedAt,
		})
		if err != nil {
			return err
		}
		result.Payment = payment

		totalCents, paidCents, err := stores.Invoices.InvoiceTotals(ctx, params.OrganizationID, invoice.LeadID)
		if err != nil {
			return err
		}
		balanceRemaining := totalCents - paidCents
		result.BalanceRemainingCents = balanceRemaining
		result.PaidInFull = balanceRemaining <= 0

		paymentCount, err := stores.Invoices.CountPayments(ctx, params.OrganizationID, invoice.LeadID)
		if err != nil {
			return err
		}
		if paymentCount == 1 {
			eligibleDeposit, err = stores.Ledger.MarkEligible(ctx, params.OrganizationID, invoice.LeadID,
				commissiondomain.PaidWhenDepositPaid)
			if err != nil {
				return err
			}
		}
		if result.PaidInFull {
			eligibleFinalPayment, err = stores.Ledger.MarkEligible(ctx, params.OrganizationID, invoice.LeadID,
				commissiondomain.PaidWhenFinalPayment)
			if err != nil {
				return err
			}
		}

		// The lead closes only when the customer has paid in full and no
		// commission balance is left owing.
		expensesSettled := false
		if result.PaidInFull {
			outstanding, err := stores.Ledger.OutstandingBalance(ctx, params.OrganizationID, invoice.LeadID)
			if err != nil {
				return err
			}
			expensesSettled = outstanding == 0
		}

		lead, err := stores.Lifecycle.AfterPaymentReceived(ctx, params.OrganizationID, invoice.LeadID,
			balanceRemaining, expensesSettled)
		if err != nil {
			return err
		}
		result.LeadStatus = string(lead.Status)
		if lead.SubStatus != nil {
			result.LeadSubStatus = string(*lead.SubStatus)
		}
		return nil
	})
	if err != nil {
		// Free the claim so a corrected submission can go through.
		if releaseErr := b.dedupe.Release(ctx, params.InvoiceID, claimRef); releaseErr != nil && b.log != nil {
			b.log.Error("failed to release payment claim", "error", releaseErr)
		}
		return PaymentResult{}, err
	}

	b.publish(ctx, events.InvoicePaymentRecorded{
		BaseEvent:             events.NewBaseEvent(),
		InvoiceID:             params.InvoiceID,
		LeadID:                leadID,
		OrganizationID:        params.OrganizationID,
		AmountCents:           params.AmountCents,
		BalanceRemainingCents: result.BalanceRemainingCents,
		PaidInFull:            result.PaidInFull,
	})
	b.publishEligible(ctx, params.OrganizationID, uuid.Nil, commissiondomain.PaidWhenDepositPaid, eligibleDeposit)
	b.publishEligible(ctx, params.OrganizationID, uuid.Nil, commissiondomain.PaidWhenFinalPayment, eligibleFinalPayment)
	if result.LeadStatus == string(leaddomain.StatusClosed) {
		b.publish(ctx, events.LeadClosed{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         leadID,
			OrganizationID: params.OrganizationID,
			SubStatus:      result.LeadSubStatus,
		})
	}
	return result, nil
}

func (b *Bridge) publish(ctx context.Context, event events.Event) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(ctx, event)
}

func (b *Bridge) publishEligible(ctx context.Context, organizationID, leadID uuid.UUID,
	trigger commissiondomain.PaidWhen, commissions []commissionrepo.Commission) {
	if len(commissions) == 0 {
		return
	}
	event := events.CommissionsEligible{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: organizationID,
		LeadID:         leadID,
		Trigger:        string(trigger),
	}
	for _, commission := range commissions {
		event.CommissionIDs = append(event.CommissionIDs, commission.ID)
		event.UserIDs = append(event.UserIDs, commission.UserID)
		event.LeadID = commission.LeadID
	}
	b.publish(ctx, event)
}
