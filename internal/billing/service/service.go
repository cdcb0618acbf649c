// Package service owns the billing workflow: issuing invoices, recording
// customer payments, and driving the lifecycle and commission side effects
// those moments trigger.
package service

import (
	"context"
	"time"

	"roofcrm_backend/internal/billing/repository"
	commissionrepo "roofcrm_backend/internal/commissions/repository"
	commissionservice "roofcrm_backend/internal/commissions/service"
	leadrepo "roofcrm_backend/internal/leads/repository"
	leadservice "roofcrm_backend/internal/leads/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceStore is the persistence surface for invoices and payments.
// Implemented by *repository.Repository, including transaction-bound copies.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, params repository.CreateInvoiceParams) (repository.Invoice, error)
	GetInvoice(ctx context.Context, organizationID, invoiceID uuid.UUID) (repository.Invoice, error)
	ListInvoicesByLead(ctx context.Context, organizationID, leadID uuid.UUID) ([]repository.Invoice, error)
	AddPayment(ctx context.Context, params repository.AddPaymentParams) (repository.Payment, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]repository.Payment, error)
	CountPayments(ctx context.Context, organizationID, leadID uuid.UUID) (int, error)
	InvoiceTotals(ctx context.Context, organizationID, leadID uuid.UUID) (totalCents, paidCents int64, err error)
}

// DedupeStore absorbs duplicate payment submissions. Implemented by the
// redis-backed dedupe.Store.
type DedupeStore interface {
	Claim(ctx context.Context, invoiceID uuid.UUID, reference string) (bool, error)
	Release(ctx context.Context, invoiceID uuid.UUID, reference string) error
}

// TxStores bundles the transaction-scoped collaborators of one bridge
// operation. Every store inside shares the same transaction.
type TxStores struct {
	Invoices  InvoiceStore
	Lifecycle *leadservice.Service
	Ledger    *commissionservice.Ledger
}

// TxRunner opens a transaction, hands transaction-bound stores to fn, and
// commits when fn returns nil. Tests substitute an in-memory runner.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// pgxRunner is the production TxRunner over a pgx pool.
type pgxRunner struct {
	pool        *pgxpool.Pool
	invoices    *repository.Repository
	leads       *leadrepo.Repository
	commissions *commissionrepo.Repository
	lifecycle   *leadservice.Service
	ledger      *commissionservice.Ledger
}

// NewTxRunner wires the production transaction runner. The lifecycle service
// and ledger passed in act as templates; each transaction gets copies bound
// to that transaction's stores.
func NewTxRunner(pool *pgxpool.Pool, invoices *repository.Repository, leads *leadrepo.Repository,
	commissions *commissionrepo.Repository, lifecycle *leadservice.Service, ledger *commissionservice.Ledger) TxRunner {
	return &pgxRunner{
		pool:        pool,
		invoices:    invoices,
		leads:       leads,
		commissions: commissions,
		lifecycle:   lifecycle,
		ledger:      ledger,
	}
}

func (r *pgxRunner) InTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txInvoices := r.invoices.WithTx(tx)
	stores := TxStores{
		Invoices:  txInvoices,
		Lifecycle: r.lifecycle.WithStore(r.leads.WithTx(tx)),
		Ledger:    r.ledger.WithSources(r.commissions.WithTx(tx), txInvoices),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateInvoiceParams is the service-level input for issuing an invoice.
type CreateInvoiceParams struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	InvoiceNumber  string
	TotalCents     int64
	DueDate        *time.Time
}

// RecordPaymentParams is the service-level input for a customer payment.
type RecordPaymentParams struct {
	OrganizationID uuid.UUID
	InvoiceID      uuid.UUID
	AmountCents    int64
	PaymentMethod  string
	Reference      string
	RecordedBy     uuid.UUID
	ReceivedAt     time.Time
}
