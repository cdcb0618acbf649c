package repository

import (
	"context"
	"encoding/json"
	"time"

	"roofcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// TransitionRecord is one row of the append-only status audit trail. Rows are
// never updated or deleted after insertion.
type TransitionRecord struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	FromStatus    domain.Status
	FromSubStatus *domain.SubStatus
	ToStatus      domain.Status
	ToSubStatus   domain.SubStatus
	Automated     bool
	Metadata      map[string]any
	ChangedBy     *uuid.UUID // nil for automated transitions
	CreatedAt     time.Time
}

type AppendTransitionParams struct {
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	FromStatus     domain.Status
	FromSubStatus  *domain.SubStatus
	ToStatus       domain.Status
	ToSubStatus    domain.SubStatus
	Automated      bool
	Metadata       map[string]any
	ChangedBy      *uuid.UUID
}

// AppendTransition writes one audit record for a successful apply.
func (r *Repository) AppendTransition(ctx context.Context, params AppendTransitionParams) (TransitionRecord, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return TransitionRecord{}, err
	}

	record := TransitionRecord{
		LeadID:        params.LeadID,
		FromStatus:    params.FromStatus,
		FromSubStatus: params.FromSubStatus,
		ToStatus:      params.ToStatus,
		ToSubStatus:   params.ToSubStatus,
		Automated:     params.Automated,
		Metadata:      metadata,
		ChangedBy:     params.ChangedBy,
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO lead_status_transitions (
			lead_id, organization_id, from_status, from_sub_status,
			to_status, to_sub_status, automated, metadata, changed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`,
		params.LeadID, params.OrganizationID, params.FromStatus, params.FromSubStatus,
		params.ToStatus, params.ToSubStatus, params.Automated, payload, params.ChangedBy,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return TransitionRecord{}, err
	}
	return record, nil
}

// ListTransitions returns a lead's audit trail ordered by creation time.
func (r *Repository) ListTransitions(ctx context.Context, organizationID, leadID uuid.UUID) ([]TransitionRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, from_status, from_sub_status, to_status, to_sub_status,
			automated, metadata, changed_by, created_at
		FROM lead_status_transitions
		WHERE lead_id = $1 AND organization_id = $2
		ORDER BY created_at ASC, id ASC
	`, leadID, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]TransitionRecord, 0)
	for rows.Next() {
		var record TransitionRecord
		var payload []byte
		if err := rows.Scan(
			&record.ID, &record.LeadID, &record.FromStatus, &record.FromSubStatus,
			&record.ToStatus, &record.ToSubStatus, &record.Automated, &payload,
			&record.ChangedBy, &record.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &record.Metadata); err != nil {
				return nil, err
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
