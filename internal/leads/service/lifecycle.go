package service

import (
	"context"
	"fmt"

	"roofcrm_backend/internal/events"
	"roofcrm_backend/internal/leads/domain"
	"roofcrm_backend/internal/leads/repository"
	"roofcrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// ApplyParams describes one requested lifecycle transition.
type ApplyParams struct {
	OrganizationID  uuid.UUID
	LeadID          uuid.UUID
	TargetStatus    domain.Status
	TargetSubStatus domain.SubStatus // empty selects the status default
	ActingUser      *uuid.UUID       // nil for automated transitions
	Automated       bool
	Metadata        map[string]any
}

// Validate checks the requested transition against the status catalog without
// applying it. Handlers call this first so they can verify a required
// permission before Apply.
func (s *Service) Validate(ctx context.Context, organizationID, leadID uuid.UUID, targetStatus domain.Status, targetSubStatus domain.SubStatus) (domain.TransitionCheck, error) {
	lead, err := s.store.GetByID(ctx, organizationID, leadID)
	if err != nil {
		return domain.TransitionCheck{}, err
	}
	return domain.ValidateTransition(lead.Status, currentSub(lead), targetStatus, targetSubStatus)
}

// Apply validates and persists a lifecycle transition, appending one record to
// the lead's append-only audit trail. Apply does not re-check permissions:
// when the transition is guarded, the caller must already have verified the
// actor holds the required permission, and that verification is recorded in
// the transition metadata.
func (s *Service) Apply(ctx context.Context, params ApplyParams) (repository.Lead, error) {
	lead, err := s.store.GetByID(ctx, params.OrganizationID, params.LeadID)
	if err != nil {
		return repository.Lead{}, err
	}

	check, err := domain.ValidateTransition(lead.Status, currentSub(lead), params.TargetStatus, params.TargetSubStatus)
	if err != nil {
		return repository.Lead{}, err
	}

	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if check.RequiresPermission != "" {
		metadata["required_permission"] = string(check.RequiresPermission)
	}

	fromStatus := lead.Status
	fromSub := lead.SubStatus

	if err := s.store.UpdateStatus(ctx, params.OrganizationID, params.LeadID, check.TargetStatus, check.TargetSubStatus); err != nil {
		return repository.Lead{}, err
	}

	if _, err := s.store.AppendTransition(ctx, repository.AppendTransitionParams{
		LeadID:         params.LeadID,
		OrganizationID: params.OrganizationID,
		FromStatus:     fromStatus,
		FromSubStatus:  fromSub,
		ToStatus:       check.TargetStatus,
		ToSubStatus:    check.TargetSubStatus,
		Automated:      params.Automated,
		Metadata:       metadata,
		ChangedBy:      params.ActingUser,
	}); err != nil {
		return repository.Lead{}, err
	}

	lead.Status = check.TargetStatus
	resolved := check.TargetSubStatus
	lead.SubStatus = &resolved

	if s.bus != nil {
		var fromSubText string
		if fromSub != nil {
			fromSubText = string(*fromSub)
		}
		s.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         params.LeadID,
			OrganizationID: params.OrganizationID,
			FromStatus:     string(fromStatus),
			FromSubStatus:  fromSubText,
			ToStatus:       string(check.TargetStatus),
			ToSubStatus:    string(check.TargetSubStatus),
			ChangedBy:      params.ActingUser,
			Automated:      params.Automated,
		})
		if domain.IsTerminal(check.TargetStatus) {
			s.bus.Publish(ctx, events.LeadClosed{
				BaseEvent:      events.NewBaseEvent(),
				LeadID:         params.LeadID,
				OrganizationID: params.OrganizationID,
				SubStatus:      string(check.TargetSubStatus),
			})
		}
	}

	if s.log != nil {
		var fromSubText string
		if fromSub != nil {
			fromSubText = string(*fromSub)
		}
		s.log.LifecycleTransition(params.LeadID.String(),
			string(fromStatus), fromSubText,
			string(check.TargetStatus), string(check.TargetSubStatus), params.Automated)
	}

	return lead, nil
}

// Automated transition helpers.
//
// Each helper hardcodes one business trigger: the expected from-status, the
// target pair, and descriptive metadata. They all run through the same Apply
// path with automated=true and no acting user.

// AfterQuoteSent advances a lead to QUOTE/SENT once its quote goes out.
func (s *Service) AfterQuoteSent(ctx context.Context, organizationID, leadID uuid.UUID) (repository.Lead, error) {
	return s.applyAutomated(ctx, organizationID, leadID, domain.StatusQuote,
		domain.StatusQuote, domain.SubStatusSent,
		map[string]any{"trigger": "quote_sent"})
}

// AfterQuoteApproved moves an approved quote into production scheduling.
func (s *Service) AfterQuoteApproved(ctx context.Context, organizationID, leadID uuid.UUID) (repository.Lead, error) {
	return s.applyAutomated(ctx, organizationID, leadID, domain.StatusQuote,
		domain.StatusProduction, domain.SubStatusScheduled,
		map[string]any{"trigger": "quote_approved"})
}

// AfterJobCompleted marks the production work finished.
func (s *Service) AfterJobCompleted(ctx context.Context, organizationID, leadID uuid.UUID) (repository.Lead, error) {
	return s.applyAutomated(ctx, organizationID, leadID, domain.StatusProduction,
		domain.StatusProduction, domain.SubStatusCompleted,
		map[string]any{"trigger": "job_completed"})
}

// AfterInvoiceCreated advances PRODUCTION/COMPLETED to INVOICED/SENT.
func (s *Service) AfterInvoiceCreated(ctx context.Context, organizationID, leadID uuid.UUID, invoiceID uuid.UUID) (repository.Lead, error) {
	return s.applyAutomated(ctx, organizationID, leadID, domain.StatusProduction,
		domain.StatusInvoiced, domain.SubStatusSent,
		map[string]any{"trigger": "invoice_created", "invoice_id": invoiceID.String()})
}

// AfterPaymentReceived advances the lead according to the remaining invoice
// balance. A positive balance lands on INVOICED/PARTIAL_PAYMENT. A settled
// invoice lands on INVOICED/PAID, or on CLOSED/COMPLETED when the caller
// reports that all owed expenses and commissions are settled too. That second
// condition is decided outside the state machine and fed in as a parameter.
func (s *Service) AfterPaymentReceived(ctx context.Context, organizationID, leadID uuid.UUID, balanceRemainingCents int64, expensesSettled bool) (repository.Lead, error) {
	metadata := map[string]any{
		"trigger":           "payment_recorded",
		"balance_remaining": balanceRemainingCents,
	}

	if balanceRemainingCents > 0 {
		return s.applyAutomated(ctx, organizationID, leadID, domain.StatusInvoiced,
			domain.StatusInvoiced, domain.SubStatusPartialPayment, metadata)
	}

	metadata["paid_in_full"] = true
	if expensesSettled {
		metadata["expenses_settled"] = true
		return s.applyAutomated(ctx, organizationID, leadID, domain.StatusInvoiced,
			domain.StatusClosed, domain.SubStatusCompleted, metadata)
	}
	return s.applyAutomated(ctx, organizationID, leadID, domain.StatusInvoiced,
		domain.StatusInvoiced, domain.SubStatusPaid, metadata)
}

func (s *Service) applyAutomated(ctx context.Context, organizationID, leadID uuid.UUID, expectedFrom domain.Status, targetStatus domain.Status, targetSub domain.SubStatus, metadata map[string]any) (repository.Lead, error) {
	lead, err := s.store.GetByID(ctx, organizationID, leadID)
	if err != nil {
		return repository.Lead{}, err
	}
	if domain.IsTerminal(lead.Status) {
		return repository.Lead{}, apperr.InvalidState("lead is closed")
	}
	if lead.Status != expectedFrom {
		return repository.Lead{}, apperr.InvalidState(
			fmt.Sprintf("automated transition expects status %s, lead is %s", expectedFrom, lead.Status))
	}

	return s.Apply(ctx, ApplyParams{
		OrganizationID:  organizationID,
		LeadID:          leadID,
		TargetStatus:    targetStatus,
		TargetSubStatus: targetSub,
		Automated:       true,
		Metadata:        metadata,
	})
}

func currentSub(lead repository.Lead) domain.SubStatus {
	if lead.SubStatus == nil {
		return ""
	}
	return *lead.SubStatus
}
