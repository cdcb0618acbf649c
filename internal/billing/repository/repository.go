// Package repository persists invoices and their payments.
package repository

import (
	"context"
	"errors"
	"time"

	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Invoice struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	InvoiceNumber  string
	TotalCents     int64
	PaidCents      int64
	Status         string
	IssuedAt       time.Time
	DueDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Invoice statuses track payment progress, not lead lifecycle.
const (
	InvoiceStatusOpen    = "open"
	InvoiceStatusPartial = "partial"
	InvoiceStatusPaid    = "paid"
)

type Payment struct {
	ID            uuid.UUID
	InvoiceID     uuid.UUID
	AmountCents   int64
	PaymentMethod string
	Reference     *string
	RecordedBy    uuid.UUID
	ReceivedAt    time.Time
	CreatedAt     time.Time
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

type CreateInvoiceParams struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	InvoiceNumber  string
	TotalCents     int64
	IssuedAt       time.Time
	DueDate        *time.Time
}

const invoiceColumns = `id, organization_id, lead_id, invoice_number, total_cents,
		paid_cents, status, issued_at, due_date, created_at, updated_at`

func (r *Repository) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (Invoice, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO invoices (organization_id, lead_id, invoice_number, total_cents, status, issued_at, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+invoiceColumns+`
	`, params.OrganizationID, params.LeadID, params.InvoiceNumber, params.TotalCents,
		InvoiceStatusOpen, params.IssuedAt, params.DueDate)
	return scanInvoice(row)
}

func (r *Repository) GetInvoice(ctx context.Context, organizationID, invoiceID uuid.UUID) (Invoice, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND organization_id = $2
	`, invoiceID, organizationID)
	invoice, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, apperr.NotFound("invoice not found")
	}
	return invoice, err
}

func (r *Repository) ListInvoicesByLead(ctx context.Context, organizationID, leadID uuid.UUID) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE organization_id = $1 AND lead_id = $2
		ORDER BY issued_at ASC, id ASC
	`, organizationID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

type AddPaymentParams struct {
	InvoiceID     uuid.UUID
	AmountCents   int64
	PaymentMethod string
	Reference     *string
	RecordedBy    uuid.UUID
	ReceivedAt    time.Time
}

// AddPayment inserts a payment row and rolls its amount into the invoice's
// paid total and status in the same statement sequence. Callers run this
// inside a transaction.
func (r *Repository) AddPayment(ctx context.Context, params AddPaymentParams) (Payment, error) {
	var payment Payment
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_payments (invoice_id, amount_cents, payment_method, reference, recorded_by, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, invoice_id, amount_cents, payment_method, reference, recorded_by, received_at, created_at
	`, params.InvoiceID, params.AmountCents, params.PaymentMethod, params.Reference,
		params.RecordedBy, params.ReceivedAt).Scan(
		&payment.ID, &payment.InvoiceID, &payment.AmountCents, &payment.PaymentMethod,
		&payment.Reference, &payment.RecordedBy, &payment.ReceivedAt, &payment.CreatedAt)
	if err != nil {
		return Payment{}, err
	}

	_, err = r.db.Exec(ctx, `
		UPDATE invoices
		SET paid_cents = paid_cents + $2,
			status = CASE WHEN paid_cents + $2 >= total_cents THEN $3 ELSE $4 END,
			updated_at = now()
		WHERE id = $1
	`, params.InvoiceID, params.AmountCents, InvoiceStatusPaid, InvoiceStatusPartial)
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func (r *Repository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, amount_cents, payment_method, reference, recorded_by, received_at, created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY received_at ASC, id ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		var payment Payment
		err := rows.Scan(&payment.ID, &payment.InvoiceID, &payment.AmountCents,
			&payment.PaymentMethod, &payment.Reference, &payment.RecordedBy,
			&payment.ReceivedAt, &payment.CreatedAt)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// CountPayments returns the number of payments recorded against any of the
// lead's invoices. Used to tell a deposit from a later installment.
func (r *Repository) CountPayments(ctx context.Context, organizationID, leadID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*)
		FROM invoice_payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE i.organization_id = $1 AND i.lead_id = $2
	`, organizationID, leadID).Scan(&count)
	return count, err
}

// InvoiceTotals sums the invoiced and paid amounts across all of a lead's
// invoices. Leads without invoices report zero totals, not an error.
func (r *Repository) InvoiceTotals(ctx context.Context, organizationID, leadID uuid.UUID) (totalCents, paidCents int64, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_cents), 0), COALESCE(SUM(paid_cents), 0)
		FROM invoices
		WHERE organization_id = $1 AND lead_id = $2
	`, organizationID, leadID).Scan(&totalCents, &paidCents)
	return totalCents, paidCents, err
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var invoice Invoice
	err := row.Scan(&invoice.ID, &invoice.OrganizationID, &invoice.LeadID,
		&invoice.InvoiceNumber, &invoice.TotalCents, &invoice.PaidCents, &invoice.Status,
		&invoice.IssuedAt, &invoice.DueDate, &invoice.CreatedAt, &invoice.UpdatedAt)
	return invoice, err
}
