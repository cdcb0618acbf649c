// Package repository persists the identity directory: users, their permission
// grants, and the commission plans assigned to them.
package repository

import (
	"context"
	"errors"
	"time"

	commissiondomain "roofcrm_backend/internal/commissions/domain"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type User struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	IsActive       bool
	CreatedAt      time.Time
}

// CommissionPlan is a company-owned earning rule referenced by users. Plans
// are mutable; commission rows snapshot the fields they used at calculation
// time and re-read the live plan on recalculation.
type CommissionPlan struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	Name            string
	CommissionType  commissiondomain.Type
	CommissionRate  float64
	FlatAmountCents int64
	CalculateOn     string
	PaidWhen        commissiondomain.PaidWhen
	IsActive        bool
}

type Repository struct {
	db db.Querier
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// GetUser fetches one user scoped to the organization.
func (r *Repository) GetUser(ctx context.Context, organizationID, userID uuid.UUID) (User, error) {
	var user User
	err := r.db.QueryRow(ctx, `
		SELECT id, organization_id, first_name, last_name, email, is_active, created_at
		FROM users
		WHERE id = $1 AND organization_id = $2
	`, userID, organizationID).Scan(
		&user.ID, &user.OrganizationID, &user.FirstName, &user.LastName,
		&user.Email, &user.IsActive, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	return user, err
}

// GetUserByID fetches one user without tenant scoping. Notification fan-out
// resolves recipients from event payloads that carry only the user id.
func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	var user User
	err := r.db.QueryRow(ctx, `
		SELECT id, organization_id, first_name, last_name, email, is_active, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.OrganizationID, &user.FirstName, &user.LastName,
		&user.Email, &user.IsActive, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	return user, err
}

// HasPermission reports whether the user holds a named permission grant.
func (r *Repository) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_permissions
			WHERE user_id = $1 AND permission = $2
		)
	`, userID, permission).Scan(&exists)
	return exists, err
}

// ActivePlanForUser returns the user's currently assigned, active commission
// plan. Returns a not found error when the user has no active plan; callers
// that create commission rows treat that as "skip", not a failure.
func (r *Repository) ActivePlanForUser(ctx context.Context, organizationID, userID uuid.UUID) (CommissionPlan, error) {
	var plan CommissionPlan
	err := r.db.QueryRow(ctx, `
		SELECT p.id, p.organization_id, p.name, p.commission_type, p.commission_rate,
			p.flat_amount_cents, p.calculate_on, p.paid_when, p.is_active
		FROM commission_plans p
		JOIN users u ON u.commission_plan_id = p.id
		WHERE u.id = $1 AND u.organization_id = $2 AND p.is_active = true
	`, userID, organizationID).Scan(
		&plan.ID, &plan.OrganizationID, &plan.Name, &plan.CommissionType,
		&plan.CommissionRate, &plan.FlatAmountCents, &plan.CalculateOn,
		&plan.PaidWhen, &plan.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CommissionPlan{}, apperr.NotFound("no active commission plan")
	}
	return plan, err
}
