// Package service provides business logic for the commission ledger and the
// permission-gated approval workflow on top of it.
package service

import (
	"context"
	"time"

	"roofcrm_backend/internal/commissions/domain"
	"roofcrm_backend/internal/commissions/repository"
	identityrepo "roofcrm_backend/internal/identity/repository"

	"github.com/google/uuid"
)

// Store is the persistence surface for commission rows. Implemented by
// *repository.Repository, including transaction-bound copies.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.Commission, error)
	GetByID(ctx context.Context, organizationID, commissionID uuid.UUID) (repository.Commission, error)
	ListByLead(ctx context.Context, organizationID, leadID uuid.UUID) ([]repository.Commission, error)
	ListActiveByLead(ctx context.Context, organizationID, leadID uuid.UUID) ([]repository.Commission, error)
	UpdateSnapshot(ctx context.Context, commissionID uuid.UUID, params repository.SnapshotParams) error
	ApplyPayment(ctx context.Context, commissionID uuid.UUID, params repository.PaymentParams) error
	Approve(ctx context.Context, organizationID, commissionID, approvedBy uuid.UUID) (bool, error)
	ApproveEligible(ctx context.Context, organizationID uuid.UUID, commissionIDs []uuid.UUID, approvedBy uuid.UUID) ([]repository.Commission, error)
	MarkPaid(ctx context.Context, organizationID, commissionID uuid.UUID, paidDate time.Time, paymentReference string, paidBy uuid.UUID) (bool, error)
	MarkEligibleByTrigger(ctx context.Context, organizationID, leadID uuid.UUID, trigger domain.PaidWhen) ([]repository.Commission, error)
	Cancel(ctx context.Context, organizationID, commissionID uuid.UUID) (bool, error)
}

// PlanDirectory reads a user's current commission plan. Implemented by the
// identity service.
type PlanDirectory interface {
	ActivePlan(ctx context.Context, organizationID, userID uuid.UUID) (identityrepo.CommissionPlan, error)
}

// InvoiceSource reads a lead's current invoice total and cumulative paid
// amount. Implemented by the billing service; this module never owns invoice
// data.
type InvoiceSource interface {
	InvoiceTotals(ctx context.Context, organizationID, leadID uuid.UUID) (totalCents, paidCents int64, err error)
}

// PermissionChecker verifies the acting user holds a named permission.
// Implemented by the identity service.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
}

// Notifier delivers a notification to one user. Delivery is best-effort: a
// failed notification never affects ledger state.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, message, linkURL string) error
}

// PendingNotification is a notification produced by a committed ledger
// mutation, to be dispatched outside the transactional boundary.
type PendingNotification struct {
	UserID  uuid.UUID
	Title   string
	Message string
	LinkURL string
}
