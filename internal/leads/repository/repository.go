package repository

import (
	"context"
	"errors"
	"time"

	"roofcrm_backend/internal/leads/domain"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadNotFoundMsg = "lead not found"

// Lead is the persisted lead row. Role assignment references are optional:
// a lead may have any subset of reps/managers attached.
type Lead struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	ConsumerFirstName   string
	ConsumerLastName    string
	ConsumerPhone       string
	ConsumerEmail       *string
	AddressStreet       string
	AddressCity         string
	AddressZipCode      string
	Status              domain.Status
	SubStatus           *domain.SubStatus
	SalesRepID          *uuid.UUID
	MarketingRepID      *uuid.UUID
	SalesManagerID      *uuid.UUID
	ProductionManagerID *uuid.UUID
	Source              *string
	IsDeleted           bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RoleAssignments returns the non-null role assignment user IDs keyed by role name.
func (l Lead) RoleAssignments() map[string]uuid.UUID {
	assignments := make(map[string]uuid.UUID, 4)
	if l.SalesRepID != nil {
		assignments["sales_rep"] = *l.SalesRepID
	}
	if l.MarketingRepID != nil {
		assignments["marketing_rep"] = *l.MarketingRepID
	}
	if l.SalesManagerID != nil {
		assignments["sales_manager"] = *l.SalesManagerID
	}
	if l.ProductionManagerID != nil {
		assignments["production_manager"] = *l.ProductionManagerID
	}
	return assignments
}

type CreateLeadParams struct {
	OrganizationID      uuid.UUID
	ConsumerFirstName   string
	ConsumerLastName    string
	ConsumerPhone       string
	ConsumerEmail       *string
	AddressStreet       string
	AddressCity         string
	AddressZipCode      string
	SalesRepID          *uuid.UUID
	MarketingRepID      *uuid.UUID
	SalesManagerID      *uuid.UUID
	ProductionManagerID *uuid.UUID
	Source              *string
}

type Repository struct {
	db db.Querier
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// WithTx returns a repository bound to the given transaction so lead mutations
// can join the caller's transactional unit.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const leadColumns = `id, organization_id, consumer_first_name, consumer_last_name, consumer_phone, consumer_email,
		address_street, address_city, address_zip_code, status, sub_status,
		sales_rep_id, marketing_rep_id, sales_manager_id, production_manager_id,
		source, is_deleted, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.OrganizationID, &lead.ConsumerFirstName, &lead.ConsumerLastName,
		&lead.ConsumerPhone, &lead.ConsumerEmail,
		&lead.AddressStreet, &lead.AddressCity, &lead.AddressZipCode,
		&lead.Status, &lead.SubStatus,
		&lead.SalesRepID, &lead.MarketingRepID, &lead.SalesManagerID, &lead.ProductionManagerID,
		&lead.Source, &lead.IsDeleted, &lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

// Create inserts a new lead. Intake always starts at NEW_LEAD with the
// catalog's default sub-status.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	defaultSub, _ := domain.DefaultSubStatus(domain.StatusNewLead)
	row := r.db.QueryRow(ctx, `
		INSERT INTO leads (
			organization_id, consumer_first_name, consumer_last_name, consumer_phone, consumer_email,
			address_street, address_city, address_zip_code, status, sub_status,
			sales_rep_id, marketing_rep_id, sales_manager_id, production_manager_id, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+leadColumns,
		params.OrganizationID, params.ConsumerFirstName, params.ConsumerLastName,
		params.ConsumerPhone, params.ConsumerEmail,
		params.AddressStreet, params.AddressCity, params.AddressZipCode,
		domain.StatusNewLead, defaultSub,
		params.SalesRepID, params.MarketingRepID, params.SalesManagerID, params.ProductionManagerID,
		params.Source,
	)
	return scanLead(row)
}

// GetByID fetches a lead scoped to the organization. Soft-deleted leads are
// excluded.
func (r *Repository) GetByID(ctx context.Context, organizationID, leadID uuid.UUID) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false
	`, leadID, organizationID)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound(leadNotFoundMsg)
	}
	return lead, err
}

// List returns leads for an organization, newest first.
func (r *Repository) List(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE organization_id = $1 AND is_deleted = false
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpdateStatus persists a validated status/sub-status pair.
func (r *Repository) UpdateStatus(ctx context.Context, organizationID, leadID uuid.UUID, status domain.Status, subStatus domain.SubStatus) error {
	result, err := r.db.Exec(ctx, `
		UPDATE leads
		SET status = $3, sub_status = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false
	`, leadID, organizationID, status, subStatus)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}
	return nil
}
