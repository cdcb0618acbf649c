package service

import (
	"context"
	"fmt"
	"time"

	"roofcrm_backend/internal/commissions/domain"
	"roofcrm_backend/internal/commissions/repository"
	"roofcrm_backend/internal/events"
	leaddomain "roofcrm_backend/internal/leads/domain"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Workflow performs the permission-gated approval operations on the ledger.
// Every operation requires the acting user to hold can_approve_commissions.
// The mutations themselves are transactional single updates; notification
// dispatch happens afterwards and is best-effort.
type Workflow struct {
	store      Store
	perms      PermissionChecker
	notifier   Notifier
	bus        events.Bus
	appBaseURL string
	log        *logger.Logger
}

// NewWorkflow creates the approval workflow.
func NewWorkflow(store Store, perms PermissionChecker, notifier Notifier, appBaseURL string, log *logger.Logger) *Workflow {
	return &Workflow{store: store, perms: perms, notifier: notifier, appBaseURL: appBaseURL, log: log}
}

// WithBus attaches an event bus. When set, approvals and settlements publish
// domain events after their update lands.
func (w *Workflow) WithBus(bus events.Bus) *Workflow {
	w.bus = bus
	return w
}

// BulkApprovalResult reports the outcome of a bulk approval. Partial success
// is the normal outcome, not an error.
type BulkApprovalResult struct {
	ApprovedCount int         `json:"approvedCount"`
	ApprovedIDs   []uuid.UUID `json:"approvedIds"`
	SkippedIDs    []uuid.UUID `json:"skippedIds"`
}

// ApproveOne approves a single eligible commission. The earner is notified
// after the update commits; a failed notification does not roll anything back.
func (w *Workflow) ApproveOne(ctx context.Context, organizationID, commissionID, actingUser uuid.UUID) (repository.Commission, error) {
	if err := w.requireApprover(ctx, actingUser); err != nil {
		return repository.Commission{}, err
	}

	commission, err := w.store.GetByID(ctx, organizationID, commissionID)
	if err != nil {
		return repository.Commission{}, err
	}
	if !domain.CanTransition(commission.Status, domain.StatusApproved) {
		return repository.Commission{}, apperr.InvalidState(
			fmt.Sprintf("commission is %s, only eligible commissions can be approved", commission.Status))
	}

	ok, err := w.store.Approve(ctx, organizationID, commissionID, actingUser)
	if err != nil {
		return repository.Commission{}, err
	}
	if !ok {
		// Lost a race with another approver.
		return repository.Commission{}, apperr.InvalidState("commission is no longer eligible")
	}

	now := time.Now()
	commission.Status = domain.StatusApproved
	commission.ApprovedBy = &actingUser
	commission.ApprovedAt = &now

	w.dispatch(ctx, []PendingNotification{w.approvalNotification(commission)})
	w.publishApproved(ctx, commission, actingUser)
	return commission, nil
}

// ApproveMany approves every listed commission that is currently eligible in
// one update. Ineligible or unknown ids are reported as skipped rather than
// failing the batch.
func (w *Workflow) ApproveMany(ctx context.Context, organizationID uuid.UUID, commissionIDs []uuid.UUID, actingUser uuid.UUID) (BulkApprovalResult, error) {
	if err := w.requireApprover(ctx, actingUser); err != nil {
		return BulkApprovalResult{}, err
	}
	if len(commissionIDs) == 0 {
		return BulkApprovalResult{ApprovedIDs: []uuid.UUID{}, SkippedIDs: []uuid.UUID{}}, nil
	}

	approved, err := w.store.ApproveEligible(ctx, organizationID, commissionIDs, actingUser)
	if err != nil {
		return BulkApprovalResult{}, err
	}

	approvedSet := make(map[uuid.UUID]bool, len(approved))
	notifications := make([]PendingNotification, 0, len(approved))
	result := BulkApprovalResult{
		ApprovedCount: len(approved),
		ApprovedIDs:   make([]uuid.UUID, 0, len(approved)),
		SkippedIDs:    make([]uuid.UUID, 0),
	}
	for _, commission := range approved {
		approvedSet[commission.ID] = true
		result.ApprovedIDs = append(result.ApprovedIDs, commission.ID)
		notifications = append(notifications, w.approvalNotification(commission))
	}
	for _, id := range commissionIDs {
		if !approvedSet[id] {
			result.SkippedIDs = append(result.SkippedIDs, id)
		}
	}

	w.dispatch(ctx, notifications)
	for _, commission := range approved {
		w.publishApproved(ctx, commission, actingUser)
	}
	return result, nil
}

// MarkPaid settles one approved commission in full with a payment reference.
// Unlike the ledger's RecordPayment, this entry point never handles partial
// amounts.
func (w *Workflow) MarkPaid(ctx context.Context, organizationID, commissionID uuid.UUID, paidDate time.Time, paymentReference string, actingUser uuid.UUID) (repository.Commission, error) {
	if err := w.requireApprover(ctx, actingUser); err != nil {
		return repository.Commission{}, err
	}

	commission, err := w.store.GetByID(ctx, organizationID, commissionID)
	if err != nil {
		return repository.Commission{}, err
	}
	if !domain.CanTransition(commission.Status, domain.StatusPaid) {
		return repository.Commission{}, apperr.InvalidState(
			fmt.Sprintf("commission is %s, only approved commissions can be marked paid", commission.Status))
	}

	ok, err := w.store.MarkPaid(ctx, organizationID, commissionID, paidDate, paymentReference, actingUser)
	if err != nil {
		return repository.Commission{}, err
	}
	if !ok {
		return repository.Commission{}, apperr.InvalidState("commission is no longer approved")
	}

	commission.Status = domain.StatusPaid
	commission.PaidDate = &paidDate
	commission.PaymentReference = &paymentReference
	commission.PaidBy = &actingUser
	commission.PaidAmountCents = commission.CalculatedAmountCents
	commission.BalanceOwedCents = 0

	w.dispatch(ctx, []PendingNotification{{
		UserID:  commission.UserID,
		Title:   "Commission paid",
		Message: fmt.Sprintf("Your commission of %s has been paid (ref %s).", formatCents(commission.CalculatedAmountCents), paymentReference),
		LinkURL: w.commissionLink(commission),
	}})
	if w.bus != nil {
		w.bus.Publish(ctx, events.CommissionPaid{
			BaseEvent:        events.NewBaseEvent(),
			CommissionID:     commission.ID,
			LeadID:           commission.LeadID,
			UserID:           commission.UserID,
			AmountCents:      commission.CalculatedAmountCents,
			PaidDate:         paidDate,
			PaymentReference: &paymentReference,
			PaidBy:           &actingUser,
		})
	}
	return commission, nil
}

func (w *Workflow) publishApproved(ctx context.Context, commission repository.Commission, approvedBy uuid.UUID) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, events.CommissionApproved{
		BaseEvent:    events.NewBaseEvent(),
		CommissionID: commission.ID,
		LeadID:       commission.LeadID,
		UserID:       commission.UserID,
		AmountCents:  commission.CalculatedAmountCents,
		ApprovedBy:   approvedBy,
	})
}

func (w *Workflow) requireApprover(ctx context.Context, actingUser uuid.UUID) error {
	ok, err := w.perms.HasPermission(ctx, actingUser, string(leaddomain.PermissionApproveCommissions))
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("missing permission " + string(leaddomain.PermissionApproveCommissions))
	}
	return nil
}

func (w *Workflow) approvalNotification(commission repository.Commission) PendingNotification {
	return PendingNotification{
		UserID:  commission.UserID,
		Title:   "Commission approved",
		Message: fmt.Sprintf("Your commission of %s has been approved for payout.", formatCents(commission.CalculatedAmountCents)),
		LinkURL: w.commissionLink(commission),
	}
}

func (w *Workflow) commissionLink(commission repository.Commission) string {
	return fmt.Sprintf("%s/leads/%s/commissions", w.appBaseURL, commission.LeadID)
}

// dispatch delivers pending notifications in parallel. The per-earner sends
// are independent and already outside the transactional boundary, so failures
// are logged and dropped.
func (w *Workflow) dispatch(ctx context.Context, notifications []PendingNotification) {
	if w.notifier == nil || len(notifications) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pending := range notifications {
		p := pending
		g.Go(func() error {
			if err := w.notifier.Notify(gctx, p.UserID, p.Title, p.Message, p.LinkURL); err != nil && w.log != nil {
				w.log.NotificationError("commission", p.UserID.String(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100.0)
}
