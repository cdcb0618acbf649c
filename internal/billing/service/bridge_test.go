package service

import (
	"context"
	"testing"
	"time"

	"roofcrm_backend/internal/billing/repository"
	commissiondomain "roofcrm_backend/internal/commissions/domain"
	commissionrepo "roofcrm_backend/internal/commissions/repository"
	commissionservice "roofcrm_backend/internal/commissions/service"
	identityrepo "roofcrm_backend/internal/identity/repository"
	leaddomain "roofcrm_backend/internal/leads/domain"
	leadrepo "roofcrm_backend/internal/leads/repository"
	leadservice "roofcrm_backend/internal/leads/service"
	"roofcrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// memInvoices is an in-memory InvoiceStore.
type memInvoices struct {
	invoices map[uuid.UUID]repository.Invoice
	payments []repository.Payment
}

func newMemInvoices() *memInvoices {
	return &memInvoices{invoices: make(map[uuid.UUID]repository.Invoice)}
}

func (m *memInvoices) CreateInvoice(_ context.Context, params repository.CreateInvoiceParams) (repository.Invoice, error) {
	invoice := repository.Invoice{
		ID:             uuid.New(),
		OrganizationID: params.OrganizationID,
		LeadID:         params.LeadID,
		InvoiceNumber:  params.InvoiceNumber,
		TotalCents:     params.TotalCents,
		Status:         repository.InvoiceStatusOpen,
		IssuedAt:       params.IssuedAt,
		DueDate:        params.DueDate,
		CreatedAt:      time.Now(),
	}
	m.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (m *memInvoices) GetInvoice(_ context.Context, _, invoiceID uuid.UUID) (repository.Invoice, error) {
	invoice, ok := m.invoices[invoiceID]
	if !ok {
		return repository.Invoice{}, apperr.NotFound("invoice not found")
	}
	return invoice, nil
}

func (m *memInvoices) ListInvoicesByLead(_ context.Context, _, leadID uuid.UUID) ([]repository.Invoice, error) {
	out := make([]repository.Invoice, 0)
	for _, invoice := range m.invoices {
		if invoice.LeadID == leadID {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (m *memInvoices) AddPayment(_ context.Context, params repository.AddPaymentParams) (repository.Payment, error) {
	payment := repository.Payment{
		ID:            uuid.New(),
		InvoiceID:     params.InvoiceID,
		AmountCents:   params.AmountCents,
		PaymentMethod: params.PaymentMethod,
		Reference:     params.Reference,
		RecordedBy:    params.RecordedBy,
		ReceivedAt:    params.ReceivedAt,
		CreatedAt:     time.Now(),
	}
	m.payments = append(m.payments, payment)

	invoice := m.invoices[params.InvoiceID]
	invoice.PaidCents += params.AmountCents
	if invoice.PaidCents >= invoice.TotalCents {
		invoice.Status = repository.InvoiceStatusPaid
	} else {
		invoice.Status = repository.InvoiceStatusPartial
	}
	m.invoices[params.InvoiceID] = invoice
	return payment, nil
}

func (m *memInvoices) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]repository.Payment, error) {
	out := make([]repository.Payment, 0)
	for _, payment := range m.payments {
		if payment.InvoiceID == invoiceID {
			out = append(out, payment)
		}
	}
	return out, nil
}

func (m *memInvoices) CountPayments(_ context.Context, _, leadID uuid.UUID) (int, error) {
	count := 0
	for _, payment := range m.payments {
		if m.invoices[payment.InvoiceID].LeadID == leadID {
			count++
		}
	}
	return count, nil
}

func (m *memInvoices) InvoiceTotals(_ context.Context, _, leadID uuid.UUID) (int64, int64, error) {
	var total, paid int64
	for _, invoice := range m.invoices {
		if invoice.LeadID == leadID {
			total += invoice.TotalCents
			paid += invoice.PaidCents
		}
	}
	return total, paid, nil
}

// memLeads is an in-memory lead store.
type memLeads struct {
	leads       map[uuid.UUID]leadrepo.Lead
	transitions []leadrepo.TransitionRecord
}

func newMemLeads() *memLeads {
	return &memLeads{leads: make(map[uuid.UUID]leadrepo.Lead)}
}

func (m *memLeads) Create(_ context.Context, params leadrepo.CreateLeadParams) (leadrepo.Lead, error) {
	sub, _ := leaddomain.DefaultSubStatus(leaddomain.StatusNewLead)
	lead := leadrepo.Lead{
		ID:             uuid.New(),
		OrganizationID: params.OrganizationID,
		Status:         leaddomain.StatusNewLead,
		SubStatus:      &sub,
		SalesRepID:     params.SalesRepID,
		MarketingRepID: params.MarketingRepID,
	}
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *memLeads) GetByID(_ context.Context, _, leadID uuid.UUID) (leadrepo.Lead, error) {
	lead, ok := m.leads[leadID]
	if !ok {
		return leadrepo.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (m *memLeads) List(_ context.Context, _ uuid.UUID, _, _ int) ([]leadrepo.Lead, error) {
	out := make([]leadrepo.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		out = append(out, lead)
	}
	return out, nil
}

func (m *memLeads) UpdateStatus(_ context.Context, _, leadID uuid.UUID, status leaddomain.Status, subStatus leaddomain.SubStatus) error {
	lead, ok := m.leads[leadID]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	lead.Status = status
	lead.SubStatus = &subStatus
	m.leads[leadID] = lead
	return nil
}

func (m *memLeads) AppendTransition(_ context.Context, params leadrepo.AppendTransitionParams) (leadrepo.TransitionRecord, error) {
	record := leadrepo.TransitionRecord{
		ID:            uuid.New(),
		LeadID:        params.LeadID,
		FromStatus:    params.FromStatus,
		FromSubStatus: params.FromSubStatus,
		ToStatus:      params.ToStatus,
		ToSubStatus:   params.ToSubStatus,
		Automated:     params.Automated,
		Metadata:      params.Metadata,
		ChangedBy:     params.ChangedBy,
		CreatedAt:     time.Now(),
	}
	m.transitions = append(m.transitions, record)
	return record, nil
}

func (m *memLeads) ListTransitions(_ context.Context, _, leadID uuid.UUID) ([]leadrepo.TransitionRecord, error) {
	out := make([]leadrepo.TransitionRecord, 0)
	for _, record := range m.transitions {
		if record.LeadID == leadID {
			out = append(out, record)
		}
	}
	return out, nil
}

// memRunner hands the same in-memory stores to every operation. There is no
// rollback; tests that exercise failures assert on returned errors only.
type memRunner struct {
	stores TxStores
}

func (r *memRunner) InTx(_ context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	return fn(context.Background(), r.stores)
}

// memDedupe is an in-memory DedupeStore.
type memDedupe struct {
	claimed map[string]bool
}

func (d *memDedupe) key(invoiceID uuid.UUID, reference string) string {
	return invoiceID.String() + ":" + reference
}

func (d *memDedupe) Claim(_ context.Context, invoiceID uuid.UUID, reference string) (bool, error) {
	if d.claimed == nil {
		d.claimed = make(map[string]bool)
	}
	key := d.key(invoiceID, reference)
	if d.claimed[key] {
		return false, nil
	}
	d.claimed[key] = true
	return true, nil
}

func (d *memDedupe) Release(_ context.Context, invoiceID uuid.UUID, reference string) error {
	delete(d.claimed, d.key(invoiceID, reference))
	return nil
}

type bridgeFixture struct {
	bridge      *Bridge
	invoices    *memInvoices
	leads       *memLeads
	commissions *memStore
	dedupe      *memDedupe
	orgID       uuid.UUID
	leadID      uuid.UUID
	salesRep    uuid.UUID
}

// memStore for commissions lives in the commissions service tests; billing
// needs its own minimal copy here.
type memStore struct {
	commissions map[uuid.UUID]commissionrepo.Commission
}

func (m *memStore) Create(_ context.Context, params commissionrepo.CreateParams) (commissionrepo.Commission, error) {
	commission := commissionrepo.Commission{
		ID:                    uuid.New(),
		OrganizationID:        params.OrganizationID,
		LeadID:                params.LeadID,
		UserID:                params.UserID,
		PlanID:                params.PlanID,
		Role:                  params.Role,
		CommissionType:        params.CommissionType,
		CommissionRate:        params.CommissionRate,
		FlatAmountCents:       params.FlatAmountCents,
		BaseAmountCents:       params.BaseAmountCents,
		CalculatedAmountCents: params.CalculatedAmountCents,
		BalanceOwedCents:      params.CalculatedAmountCents,
		PaidWhen:              params.PaidWhen,
		Status:                commissiondomain.StatusPending,
	}
	m.commissions[commission.ID] = commission
	return commission, nil
}

func (m *memStore) GetByID(_ context.Context, _, commissionID uuid.UUID) (commissionrepo.Commission, error) {
	commission, ok := m.commissions[commissionID]
	if !ok {
		return commissionrepo.Commission{}, apperr.NotFound("commission not found")
	}
	return commission, nil
}

func (m *memStore) ListByLead(_ context.Context, _, leadID uuid.UUID) ([]commissionrepo.Commission, error) {
	out := make([]commissionrepo.Commission, 0)
	for _, commission := range m.commissions {
		if commission.LeadID == leadID {
			out = append(out, commission)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveByLead(ctx context.Context, orgID, leadID uuid.UUID) ([]commissionrepo.Commission, error) {
	all, _ := m.ListByLead(ctx, orgID, leadID)
	out := make([]commissionrepo.Commission, 0, len(all))
	for _, commission := range all {
		if commission.Status != commissiondomain.StatusCancelled {
			out = append(out, commission)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSnapshot(_ context.Context, commissionID uuid.UUID, params commissionrepo.SnapshotParams) error {
	commission := m.commissions[commissionID]
	commission.PlanID = params.PlanID
	commission.CommissionType = params.CommissionType
	commission.CommissionRate = params.CommissionRate
	commission.FlatAmountCents = params.FlatAmountCents
	commission.BaseAmountCents = params.BaseAmountCents
	commission.CalculatedAmountCents = params.CalculatedAmountCents
	commission.BalanceOwedCents = params.BalanceOwedCents
	m.commissions[commissionID] = commission
	return nil
}

func (m *memStore) ApplyPayment(_ context.Context, commissionID uuid.UUID, params commissionrepo.PaymentParams) error {
	commission := m.commissions[commissionID]
	commission.PaidAmountCents = params.PaidAmountCents
	commission.BalanceOwedCents = params.BalanceOwedCents
	commission.Status = params.Status
	commission.PaidBy = params.PaidBy
	commission.PaidDate = params.PaidDate
	m.commissions[commissionID] = commission
	return nil
}

func (m *memStore) Approve(_ context.Context, _, commissionID, approvedBy uuid.UUID) (bool, error) {
	commission, ok := m.commissions[commissionID]
	if !ok || commission.Status != commissiondomain.StatusEligible {
		return false, nil
	}
	commission.Status = commissiondomain.StatusApproved
	commission.ApprovedBy = &approvedBy
	m.commissions[commissionID] = commission
	return true, nil
}

func (m *memStore) ApproveEligible(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _ uuid.UUID) ([]commissionrepo.Commission, error) {
	return nil, nil
}

func (m *memStore) MarkPaid(_ context.Context, _, _ uuid.UUID, _ time.Time, _ string, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (m *memStore) MarkEligibleByTrigger(_ context.Context, _, leadID uuid.UUID, trigger commissiondomain.PaidWhen) ([]commissionrepo.Commission, error) {
	flipped := make([]commissionrepo.Commission, 0)
	for id, commission := range m.commissions {
		if commission.LeadID == leadID && commission.PaidWhen == trigger &&
			commission.Status == commissiondomain.StatusPending {
			commission.Status = commissiondomain.StatusEligible
			m.commissions[id] = commission
			flipped = append(flipped, commission)
		}
	}
	return flipped, nil
}

func (m *memStore) Cancel(_ context.Context, _, commissionID uuid.UUID) (bool, error) {
	commission, ok := m.commissions[commissionID]
	if !ok || commission.Status == commissiondomain.StatusPaid {
		return false, nil
	}
	commission.Status = commissiondomain.StatusCancelled
	m.commissions[commissionID] = commission
	return true, nil
}

type staticPlans struct {
	plans map[uuid.UUID]identityrepo.CommissionPlan
}

func (p *staticPlans) ActivePlan(_ context.Context, _, userID uuid.UUID) (identityrepo.CommissionPlan, error) {
	plan, ok := p.plans[userID]
	if !ok {
		return identityrepo.CommissionPlan{}, apperr.NotFound("no active commission plan")
	}
	return plan, nil
}

func newBridgeFixture(t *testing.T, salesRepPaidWhen commissiondomain.PaidWhen) *bridgeFixture {
	t.Helper()
	invoices := newMemInvoices()
	leads := newMemLeads()
	commissions := &memStore{commissions: make(map[uuid.UUID]commissionrepo.Commission)}
	salesRep := uuid.New()

	plans := &staticPlans{plans: map[uuid.UUID]identityrepo.CommissionPlan{
		salesRep: {
			ID:             uuid.New(),
			CommissionType: commissiondomain.TypePercentage,
			CommissionRate: 10,
			PaidWhen:       salesRepPaidWhen,
			IsActive:       true,
		},
	}}

	lifecycle := leadservice.New(leads, nil)
	ledger := commissionservice.NewLedger(commissions, plans, invoices, nil)

	orgID := uuid.New()
	lead, err := leads.Create(context.Background(), leadrepo.CreateLeadParams{
		OrganizationID: orgID,
		SalesRepID:     &salesRep,
	})
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	// Walk the lead to PRODUCTION so invoicing is a legal next move.
	lead.Status = leaddomain.StatusProduction
	sub := leaddomain.SubStatusCompleted
	lead.SubStatus = &sub
	leads.leads[lead.ID] = lead

	runner := &memRunner{stores: TxStores{Invoices: invoices, Lifecycle: lifecycle, Ledger: ledger}}
	dedupe := &memDedupe{}
	bridge := NewBridge(runner, dedupe, nil, nil)

	return &bridgeFixture{
		bridge:      bridge,
		invoices:    invoices,
		leads:       leads,
		commissions: commissions,
		dedupe:      dedupe,
		orgID:       orgID,
		leadID:      lead.ID,
		salesRep:    salesRep,
	}
}

func TestOnInvoiceCreatedSeedsLedgerAndMovesLead(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenFinalPayment)

	result, err := f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		InvoiceNumber:  "INV-2026-001",
		TotalCents:     500000,
	})
	if err != nil {
		t.Fatalf("invoice created: %v", err)
	}
	if result.CommissionsCreated != 1 {
		t.Fatalf("expected 1 commission created, got %d", result.CommissionsCreated)
	}

	lead := f.leads.leads[f.leadID]
	if lead.Status != leaddomain.StatusInvoiced {
		t.Fatalf("expected lead INVOICED, got %s", lead.Status)
	}
	if lead.SubStatus == nil || *lead.SubStatus != leaddomain.SubStatusSent {
		t.Fatalf("expected sub-status SENT, got %v", lead.SubStatus)
	}

	for _, commission := range f.commissions.commissions {
		if commission.CalculatedAmountCents != 50000 {
			t.Errorf("expected 10%% of 500000 = 50000, got %d", commission.CalculatedAmountCents)
		}
		if commission.Status != commissiondomain.StatusPending {
			t.Errorf("final-payment commission stays pending at invoicing, got %s", commission.Status)
		}
	}
}

func TestOnInvoiceCreatedFlipsInvoiceTriggeredCommissions(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenInvoiceCreated)

	result, err := f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		InvoiceNumber:  "INV-2026-001",
		TotalCents:     500000,
	})
	if err != nil {
		t.Fatalf("invoice created: %v", err)
	}
	if len(result.CommissionsEligible) != 1 {
		t.Fatalf("expected 1 eligible commission, got %d", len(result.CommissionsEligible))
	}
	for _, commission := range f.commissions.commissions {
		if commission.Status != commissiondomain.StatusEligible {
			t.Errorf("expected eligible, got %s", commission.Status)
		}
	}
}

func TestOnInvoiceCreatedRejectsBadInput(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenFinalPayment)

	_, err := f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		InvoiceNumber:  "INV-2026-001",
		TotalCents:     0,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for zero total, got %v", err)
	}

	_, err = f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		TotalCents:     1000,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for missing number, got %v", err)
	}
}

func TestOnPaymentRecordedPartialThenFinal(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenFinalPayment)

	invoiceResult, err := f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		InvoiceNumber:  "INV-2026-001",
		TotalCents:     500000,
	})
	if err != nil {
		t.Fatalf("invoice created: %v", err)
	}
	invoiceID := invoiceResult.Invoice.ID

	// Deposit covers part of the invoice.
	payment, err := f.bridge.OnPaymentRecorded(context.Background(), RecordPaymentParams{
		OrganizationID: f.orgID,
		InvoiceID:      invoiceID,
		AmountCents:    200000,
		PaymentMethod:  "check",
		Reference:      "CHK-100",
		RecordedBy:     uuid.New(),
		ReceivedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if payment.BalanceRemainingCents != 300000 {
		t.Fatalf("expected 300000 remaining, got %d", payment.BalanceRemainingCents)
	}
	if payment.PaidInFull {
		t.Fatal("deposit must not report paid in full")
	}
	if payment.LeadStatus != string(leaddomain.StatusInvoiced) ||
		payment.LeadSubStatus != string(leaddomain.SubStatusPartialPayment) {
		t.Fatalf("expected INVOICED/PARTIAL_PAYMENT, got %s/%s", payment.LeadStatus, payment.LeadSubStatus)
	}
	for _, commission := range f.commissions.commissions {
		if commission.Status != commissiondomain.StatusPending {
			t.Errorf("final-payment commission must stay pending after deposit, got %s", commission.Status)
		}
	}

	// Remainder clears the invoice and releases final-payment commissions.
	payment, err = f.bridge.OnPaymentRecorded(context.Background(), RecordPaymentParams{
		OrganizationID: f.orgID,
		InvoiceID:      invoiceID,
		AmountCents:    300000,
		PaymentMethod:  "check",
		Reference:      "CHK-101",
		RecordedBy:     uuid.New(),
		ReceivedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if !payment.PaidInFull || payment.BalanceRemainingCents != 0 {
		t.Fatalf("expected paid in full, got balance %d", payment.BalanceRemainingCents)
	}
	// Commissions are now eligible but unpaid, so the lead stays on
	// INVOICED/PAID rather than closing.
	if payment.LeadStatus != string(leaddomain.StatusInvoiced) ||
		payment.LeadSubStatus != string(leaddomain.SubStatusPaid) {
		t.Fatalf("expected INVOICED/PAID, got %s/%s", payment.LeadStatus, payment.LeadSubStatus)
	}
	for _, commission := range f.commissions.commissions {
		if commission.Status != commissiondomain.StatusEligible {
			t.Errorf("expected eligible after final payment, got %s", commission.Status)
		}
	}
}

func TestOnPaymentRecordedClosesLeadWhenSettled(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenDepositPaid)

	invoiceResult, err := f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		InvoiceNumber:  "INV-2026-001",
		TotalCents:     500000,
	})
	if err != nil {
		t.Fatalf("invoice created: %v", err)
	}

	// Settle the commission before the customer pays so the invoice-clearing
	// payment closes the lead.
	for id, commission := range f.commissions.commissions {
		commission.Status = commissiondomain.StatusPaid
		commission.PaidAmountCents = commission.CalculatedAmountCents
		commission.BalanceOwedCents = 0
		f.commissions.commissions[id] = commission
	}

	payment, err := f.bridge.OnPaymentRecorded(context.Background(), RecordPaymentParams{
		OrganizationID: f.orgID,
		InvoiceID:      invoiceResult.Invoice.ID,
		AmountCents:    500000,
		PaymentMethod:  "ach",
		Reference:      "ACH-1",
		RecordedBy:     uuid.New(),
		ReceivedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if payment.LeadStatus != string(leaddomain.StatusClosed) ||
		payment.LeadSubStatus != string(leaddomain.SubStatusCompleted) {
		t.Fatalf("expected CLOSED/COMPLETED, got %s/%s", payment.LeadStatus, payment.LeadSubStatus)
	}
}

func TestOnInvoiceCreatedReplaysCompletionTrigger(t *testing.T) {
	// The job finished before the invoice went out, so completion-triggered
	// commissions flip eligible the moment they are seeded.
	f := newBridgeFixture(t, commissiondomain.PaidWhenJobCompleted)

	result, err := f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		InvoiceNumber:  "INV-2026-001",
		TotalCents:     500000,
	})
	if err != nil {
		t.Fatalf("invoice created: %v", err)
	}
	if len(result.CommissionsEligible) != 1 {
		t.Fatalf("expected 1 eligible commission, got %d", len(result.CommissionsEligible))
	}
	for _, commission := range f.commissions.commissions {
		if commission.Status != commissiondomain.StatusEligible {
			t.Errorf("expected eligible, got %s", commission.Status)
		}
	}
}

func TestOnJobCompleted(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenJobCompleted)

	// Rewind the lead to mid-production and seed a pending commission row.
	lead := f.leads.leads[f.leadID]
	sub := leaddomain.SubStatusInProgress
	lead.SubStatus = &sub
	f.leads.leads[f.leadID] = lead
	_, err := f.commissions.Create(context.Background(), commissionrepo.CreateParams{
		OrganizationID:        f.orgID,
		LeadID:                f.leadID,
		UserID:                f.salesRep,
		PlanID:                uuid.New(),
		Role:                  "sales_rep",
		CommissionType:        commissiondomain.TypeFlatAmount,
		FlatAmountCents:       30000,
		CalculatedAmountCents: 30000,
		PaidWhen:              commissiondomain.PaidWhenJobCompleted,
	})
	if err != nil {
		t.Fatalf("seed commission: %v", err)
	}

	if err := f.bridge.OnJobCompleted(context.Background(), f.orgID, f.leadID); err != nil {
		t.Fatalf("job completed: %v", err)
	}

	lead = f.leads.leads[f.leadID]
	if lead.SubStatus == nil || *lead.SubStatus != leaddomain.SubStatusCompleted {
		t.Fatalf("expected PRODUCTION/COMPLETED, got %v", lead.SubStatus)
	}
	for _, commission := range f.commissions.commissions {
		if commission.Status != commissiondomain.StatusEligible {
			t.Errorf("expected eligible after job completion, got %s", commission.Status)
		}
	}
}

func TestOnPaymentRecordedRejectsDuplicates(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenFinalPayment)

	invoiceResult, err := f.bridge.OnInvoiceCreated(context.Background(), CreateInvoiceParams{
		OrganizationID: f.orgID,
		LeadID:         f.leadID,
		InvoiceNumber:  "INV-2026-001",
		TotalCents:     500000,
	})
	if err != nil {
		t.Fatalf("invoice created: %v", err)
	}

	params := RecordPaymentParams{
		OrganizationID: f.orgID,
		InvoiceID:      invoiceResult.Invoice.ID,
		AmountCents:    100000,
		PaymentMethod:  "check",
		Reference:      "CHK-100",
		RecordedBy:     uuid.New(),
		ReceivedAt:     time.Now(),
	}
	if _, err := f.bridge.OnPaymentRecorded(context.Background(), params); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	_, err = f.bridge.OnPaymentRecorded(context.Background(), params)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on duplicate, got %v", err)
	}
	if len(f.invoices.payments) != 1 {
		t.Fatalf("duplicate must not write a payment, got %d rows", len(f.invoices.payments))
	}
}

func TestOnPaymentRecordedReleasesClaimOnFailure(t *testing.T) {
	f := newBridgeFixture(t, commissiondomain.PaidWhenFinalPayment)

	params := RecordPaymentParams{
		OrganizationID: f.orgID,
		InvoiceID:      uuid.New(), // no such invoice
		AmountCents:    100000,
		PaymentMethod:  "check",
		Reference:      "CHK-100",
		RecordedBy:     uuid.New(),
		ReceivedAt:     time.Now(),
	}
	_, err := f.bridge.OnPaymentRecorded(context.Background(), params)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.dedupe.claimed) != 0 {
		t.Fatal("failed submission must release its claim")
	}
}
