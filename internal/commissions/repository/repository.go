package repository

import (
	"context"
	"errors"
	"time"

	"roofcrm_backend/internal/commissions/domain"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const commissionNotFoundMsg = "commission not found"

// Commission is one ledger line: what one user earns on one lead. The plan
// fields are a snapshot taken at calculation time; recalculation is the only
// path allowed to overwrite them.
type Commission struct {
	ID                    uuid.UUID
	OrganizationID        uuid.UUID
	LeadID                uuid.UUID
	UserID                uuid.UUID
	PlanID                uuid.UUID
	Role                  string
	CommissionType        domain.Type
	CommissionRate        float64
	FlatAmountCents       int64
	BaseAmountCents       int64
	CalculatedAmountCents int64
	PaidAmountCents       int64
	BalanceOwedCents      int64
	PaidWhen              domain.PaidWhen
	Status                domain.Status
	ApprovedBy            *uuid.UUID
	ApprovedAt            *time.Time
	PaidDate              *time.Time
	PaymentReference      *string
	PaidBy                *uuid.UUID
	Notes                 *string
	IsDeleted             bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type CreateParams struct {
	OrganizationID        uuid.UUID
	LeadID                uuid.UUID
	UserID                uuid.UUID
	PlanID                uuid.UUID
	Role                  string
	CommissionType        domain.Type
	CommissionRate        float64
	FlatAmountCents       int64
	BaseAmountCents       int64
	CalculatedAmountCents int64
	PaidWhen              domain.PaidWhen
}

type Repository struct {
	db db.Querier
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const commissionColumns = `id, organization_id, lead_id, user_id, plan_id, role,
		commission_type, commission_rate, flat_amount_cents, base_amount_cents,
		calculated_amount_cents, paid_amount_cents, balance_owed_cents, paid_when, status,
		approved_by, approved_at, paid_date, payment_reference, paid_by, notes,
		is_deleted, created_at, updated_at`

func scanCommission(row pgx.Row) (Commission, error) {
	var c Commission
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.LeadID, &c.UserID, &c.PlanID, &c.Role,
		&c.CommissionType, &c.CommissionRate, &c.FlatAmountCents, &c.BaseAmountCents,
		&c.CalculatedAmountCents, &c.PaidAmountCents, &c.BalanceOwedCents, &c.PaidWhen, &c.Status,
		&c.ApprovedBy, &c.ApprovedAt, &c.PaidDate, &c.PaymentReference, &c.PaidBy, &c.Notes,
		&c.IsDeleted, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// Create inserts a new pending commission row. balance_owed starts equal to
// the calculated amount since nothing has been paid.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Commission, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO lead_commissions (
			organization_id, lead_id, user_id, plan_id, role,
			commission_type, commission_rate, flat_amount_cents, base_amount_cents,
			calculated_amount_cents, paid_amount_cents, balance_owed_cents, paid_when, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $10, $11, $12)
		RETURNING `+commissionColumns,
		params.OrganizationID, params.LeadID, params.UserID, params.PlanID, params.Role,
		params.CommissionType, params.CommissionRate, params.FlatAmountCents, params.BaseAmountCents,
		params.CalculatedAmountCents, params.PaidWhen, domain.StatusPending,
	)
	return scanCommission(row)
}

// GetByID fetches one commission scoped to the organization.
func (r *Repository) GetByID(ctx context.Context, organizationID, commissionID uuid.UUID) (Commission, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+commissionColumns+`
		FROM lead_commissions
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false
	`, commissionID, organizationID)

	commission, err := scanCommission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Commission{}, apperr.NotFound(commissionNotFoundMsg)
	}
	return commission, err
}

// ListByLead returns all non-deleted commissions on a lead.
func (r *Repository) ListByLead(ctx context.Context, organizationID, leadID uuid.UUID) ([]Commission, error) {
	return r.list(ctx, `
		SELECT `+commissionColumns+`
		FROM lead_commissions
		WHERE lead_id = $1 AND organization_id = $2 AND is_deleted = false
		ORDER BY created_at ASC
	`, leadID, organizationID)
}

// ListActiveByLead returns commissions on a lead that recalculation may touch:
// non-cancelled and non-deleted.
func (r *Repository) ListActiveByLead(ctx context.Context, organizationID, leadID uuid.UUID) ([]Commission, error) {
	return r.list(ctx, `
		SELECT `+commissionColumns+`
		FROM lead_commissions
		WHERE lead_id = $1 AND organization_id = $2 AND is_deleted = false AND status <> $3
		ORDER BY created_at ASC
	`, leadID, organizationID, domain.StatusCancelled)
}

// LeadRef identifies a lead within its organization.
type LeadRef struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
}

// ListLeadsWithOpenCommissions returns distinct leads that still carry
// pending or eligible commissions. The recalculation sweep walks this list.
func (r *Repository) ListLeadsWithOpenCommissions(ctx context.Context, limit int) ([]LeadRef, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT organization_id, lead_id
		FROM lead_commissions
		WHERE is_deleted = false AND status IN ($1, $2)
		LIMIT $3
	`, domain.StatusPending, domain.StatusEligible, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]LeadRef, 0)
	for rows.Next() {
		var ref LeadRef
		if err := rows.Scan(&ref.OrganizationID, &ref.LeadID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]Commission, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commissions := make([]Commission, 0)
	for rows.Next() {
		commission, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		commissions = append(commissions, commission)
	}
	return commissions, rows.Err()
}

// SnapshotParams are the plan-snapshot and derived fields recalculation is
// allowed to overwrite.
type SnapshotParams struct {
	PlanID                uuid.UUID
	CommissionType        domain.Type
	CommissionRate        float64
	FlatAmountCents       int64
	BaseAmountCents       int64
	CalculatedAmountCents int64
	BalanceOwedCents      int64
}

// UpdateSnapshot overwrites the snapshot fields and derived amounts of one row.
func (r *Repository) UpdateSnapshot(ctx context.Context, commissionID uuid.UUID, params SnapshotParams) error {
	result, err := r.db.Exec(ctx, `
		UPDATE lead_commissions
		SET plan_id = $2, commission_type = $3, commission_rate = $4, flat_amount_cents = $5,
			base_amount_cents = $6, calculated_amount_cents = $7, balance_owed_cents = $8,
			updated_at = now()
		WHERE id = $1 AND is_deleted = false
	`, commissionID, params.PlanID, params.CommissionType, params.CommissionRate,
		params.FlatAmountCents, params.BaseAmountCents, params.CalculatedAmountCents,
		params.BalanceOwedCents)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(commissionNotFoundMsg)
	}
	return nil
}

// PaymentParams record the outcome of a payment against one commission.
type PaymentParams struct {
	PaidAmountCents  int64
	BalanceOwedCents int64
	Status           domain.Status
	PaidBy           *uuid.UUID
	PaidDate         *time.Time
	Notes            *string
}

// ApplyPayment persists payment bookkeeping on one row.
func (r *Repository) ApplyPayment(ctx context.Context, commissionID uuid.UUID, params PaymentParams) error {
	result, err := r.db.Exec(ctx, `
		UPDATE lead_commissions
		SET paid_amount_cents = $2, balance_owed_cents = $3, status = $4,
			paid_by = $5, paid_date = $6, notes = COALESCE($7, notes), updated_at = now()
		WHERE id = $1 AND is_deleted = false
	`, commissionID, params.PaidAmountCents, params.BalanceOwedCents, params.Status,
		params.PaidBy, params.PaidDate, params.Notes)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(commissionNotFoundMsg)
	}
	return nil
}

// Approve moves one eligible commission to approved. Returns false when the
// row exists but is not currently eligible; the status guard lives in SQL so
// concurrent approvals cannot double-apply.
func (r *Repository) Approve(ctx context.Context, organizationID, commissionID, approvedBy uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE lead_commissions
		SET status = $4, approved_by = $3, approved_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status = $5 AND is_deleted = false
	`, commissionID, organizationID, approvedBy, domain.StatusApproved, domain.StatusEligible)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// ApproveEligible approves every listed commission that is currently eligible
// in one update, returning the rows actually approved. Ineligible ids are
// silently dropped; partial success is the normal outcome for bulk approval.
func (r *Repository) ApproveEligible(ctx context.Context, organizationID uuid.UUID, commissionIDs []uuid.UUID, approvedBy uuid.UUID) ([]Commission, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE lead_commissions
		SET status = $4, approved_by = $3, approved_at = now(), updated_at = now()
		WHERE id = ANY($1) AND organization_id = $2 AND status = $5 AND is_deleted = false
		RETURNING `+commissionColumns,
		commissionIDs, organizationID, approvedBy, domain.StatusApproved, domain.StatusEligible)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	approved := make([]Commission, 0, len(commissionIDs))
	for rows.Next() {
		commission, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		approved = append(approved, commission)
	}
	return approved, rows.Err()
}

// MarkPaid settles one approved commission in full.
func (r *Repository) MarkPaid(ctx context.Context, organizationID, commissionID uuid.UUID, paidDate time.Time, paymentReference string, paidBy uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE lead_commissions
		SET status = $6, paid_date = $3, payment_reference = $4, paid_by = $5,
			paid_amount_cents = calculated_amount_cents, balance_owed_cents = 0, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status = $7 AND is_deleted = false
	`, commissionID, organizationID, paidDate, paymentReference, paidBy,
		domain.StatusPaid, domain.StatusApproved)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// MarkEligibleByTrigger flips a lead's pending commissions whose paid_when
// matches the trigger to eligible, returning the rows flipped.
func (r *Repository) MarkEligibleByTrigger(ctx context.Context, organizationID, leadID uuid.UUID, trigger domain.PaidWhen) ([]Commission, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE lead_commissions
		SET status = $4, updated_at = now()
		WHERE lead_id = $1 AND organization_id = $2 AND paid_when = $3
			AND status = $5 AND is_deleted = false
		RETURNING `+commissionColumns,
		leadID, organizationID, trigger, domain.StatusEligible, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flipped := make([]Commission, 0)
	for rows.Next() {
		commission, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		flipped = append(flipped, commission)
	}
	return flipped, rows.Err()
}

// Cancel soft-cancels one commission from any non-paid state.
func (r *Repository) Cancel(ctx context.Context, organizationID, commissionID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE lead_commissions
		SET status = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status <> $4 AND status <> $3 AND is_deleted = false
	`, commissionID, organizationID, domain.StatusCancelled, domain.StatusPaid)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
