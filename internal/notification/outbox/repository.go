// Package outbox persists email work items so delivery survives process
// restarts. A scheduler task drains due records and hands them to the SMTP
// sender.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"roofcrm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

const maxAttempts = 5

type Record struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Kind           string
	Payload        json.RawMessage
	RunAt          time.Time
	Status         Status
	Attempts       int
	LastError      *string
	CreatedAt      time.Time
}

type InsertParams struct {
	OrganizationID uuid.UUID
	Kind           string
	Payload        any
	RunAt          time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	runAt := p.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx, `
		INSERT INTO notification_outbox (organization_id, kind, payload, run_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.OrganizationID, p.Kind, payload, runAt, StatusPending).Scan(&id)
	return id, err
}

// ClaimDue atomically moves up to limit due pending records to processing and
// returns them. FOR UPDATE SKIP LOCKED keeps concurrent workers from claiming
// the same rows.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE notification_outbox
		SET status = $1, attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM notification_outbox
			WHERE status = $2 AND run_at <= now()
			ORDER BY run_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, organization_id, kind, payload, run_at, status, attempts, last_error, created_at
	`, StatusProcessing, StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var record Record
		err := rows.Scan(&record.ID, &record.OrganizationID, &record.Kind, &record.Payload,
			&record.RunAt, &record.Status, &record.Attempts, &record.LastError, &record.CreatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	var record Record
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, kind, payload, run_at, status, attempts, last_error, created_at
		FROM notification_outbox
		WHERE id = $1
	`, id).Scan(&record.ID, &record.OrganizationID, &record.Kind, &record.Payload,
		&record.RunAt, &record.Status, &record.Attempts, &record.LastError, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, apperr.NotFound("outbox record not found")
		}
		return Record{}, err
	}
	return record, nil
}

func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox SET status = $2, last_error = NULL WHERE id = $1
	`, id, StatusSucceeded)
	return err
}

// MarkFailed records the failure and either reschedules with backoff or,
// after maxAttempts, parks the record as failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, cause string) error {
	if attempts >= maxAttempts {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_outbox SET status = $2, last_error = $3 WHERE id = $1
		`, id, StatusFailed, cause)
		return err
	}
	backoff := time.Duration(attempts*attempts) * time.Minute
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox SET status = $2, last_error = $3, run_at = now() + $4 WHERE id = $1
	`, id, StatusPending, cause, backoff)
	return err
}
