package service

import (
	"context"
	"testing"
	"time"

	"roofcrm_backend/internal/commissions/domain"
	"roofcrm_backend/internal/commissions/repository"
	identityrepo "roofcrm_backend/internal/identity/repository"
	"roofcrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for service tests. It tracks write counts so
// idempotence can be asserted.
type memStore struct {
	commissions map[uuid.UUID]repository.Commission
	writes      int
}

func newMemStore() *memStore {
	return &memStore{commissions: make(map[uuid.UUID]repository.Commission)}
}

func (m *memStore) Create(_ context.Context, params repository.CreateParams) (repository.Commission, error) {
	commission := repository.Commission{
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
		Status:                domain.StatusPending,
		CreatedAt:             time.Now(),
	}
	m.commissions[commission.ID] = commission
	m.writes++
	return commission, nil
}

func (m *memStore) GetByID(_ context.Context, _, commissionID uuid.UUID) (repository.Commission, error) {
	commission, ok := m.commissions[commissionID]
	if !ok || commission.IsDeleted {
		return repository.Commission{}, apperr.NotFound("commission not found")
	}
	return commission, nil
}

func (m *memStore) ListByLead(_ context.Context, _, leadID uuid.UUID) ([]repository.Commission, error) {
	out := make([]repository.Commission, 0)
	for _, commission := range m.commissions {
		if commission.LeadID == leadID && !commission.IsDeleted {
			out = append(out, commission)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveByLead(_ context.Context, _, leadID uuid.UUID) ([]repository.Commission, error) {
	out := make([]repository.Commission, 0)
	for _, commission := range m.commissions {
		if commission.LeadID == leadID && !commission.IsDeleted && commission.Status != domain.StatusCancelled {
			out = append(out, commission)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSnapshot(_ context.Context, commissionID uuid.UUID, params repository.SnapshotParams) error {
	commission, ok := m.commissions[commissionID]
	if !ok {
		return apperr.NotFound("commission not found")
	}
	commission.PlanID = params.PlanID
	commission.CommissionType = params.CommissionType
	commission.CommissionRate = params.CommissionRate
	commission.FlatAmountCents = params.FlatAmountCents
	commission.BaseAmountCents = params.BaseAmountCents
	commission.CalculatedAmountCents = params.CalculatedAmountCents
	commission.BalanceOwedCents = params.BalanceOwedCents
	m.commissions[commissionID] = commission
	m.writes++
	return nil
}

func (m *memStore) ApplyPayment(_ context.Context, commissionID uuid.UUID, params repository.PaymentParams) error {
	commission, ok := m.commissions[commissionID]
	if !ok {
		return apperr.NotFound("commission not found")
	}
	commission.PaidAmountCents = params.PaidAmountCents
	commission.BalanceOwedCents = params.BalanceOwedCents
	commission.Status = params.Status
	commission.PaidBy = params.PaidBy
	commission.PaidDate = params.PaidDate
	if params.Notes != nil {
		commission.Notes = params.Notes
	}
	m.commissions[commissionID] = commission
	m.writes++
	return nil
}

func (m *memStore) Approve(_ context.Context, _, commissionID, approvedBy uuid.UUID) (bool, error) {
	commission, ok := m.commissions[commissionID]
	if !ok || commission.Status != domain.StatusEligible {
		return false, nil
	}
	now := time.Now()
	commission.Status = domain.StatusApproved
	commission.ApprovedBy = &approvedBy
	commission.ApprovedAt = &now
	m.commissions[commissionID] = commission
	m.writes++
	return true, nil
}

func (m *memStore) ApproveEligible(_ context.Context, _ uuid.UUID, commissionIDs []uuid.UUID, approvedBy uuid.UUID) ([]repository.Commission, error) {
	approved := make([]repository.Commission, 0)
	now := time.Now()
	for _, id := range commissionIDs {
		commission, ok := m.commissions[id]
		if !ok || commission.Status != domain.StatusEligible {
			continue
		}
		commission.Status = domain.StatusApproved
		commission.ApprovedBy = &approvedBy
		commission.ApprovedAt = &now
		m.commissions[id] = commission
		m.writes++
		approved = append(approved, commission)
	}
	return approved, nil
}

func (m *memStore) MarkPaid(_ context.Context, _, commissionID uuid.UUID, paidDate time.Time, paymentReference string, paidBy uuid.UUID) (bool, error) {
	commission, ok := m.commissions[commissionID]
	if !ok || commission.Status != domain.StatusApproved {
		return false, nil
	}
	commission.Status = domain.StatusPaid
	commission.PaidDate = &paidDate
	commission.PaymentReference = &paymentReference
	commission.PaidBy = &paidBy
	commission.PaidAmountCents = commission.CalculatedAmountCents
	commission.BalanceOwedCents = 0
	m.commissions[commissionID] = commission
	m.writes++
	return true, nil
}

func (m *memStore) MarkEligibleByTrigger(_ context.Context, _, leadID uuid.UUID, trigger domain.PaidWhen) ([]repository.Commission, error) {
	flipped := make([]repository.Commission, 0)
	for id, commission := range m.commissions {
		if commission.LeadID == leadID && commission.PaidWhen == trigger &&
			commission.Status == domain.StatusPending && !commission.IsDeleted {
			commission.Status = domain.StatusEligible
			m.commissions[id] = commission
			m.writes++
			flipped = append(flipped, commission)
		}
	}
	return flipped, nil
}

func (m *memStore) Cancel(_ context.Context, _, commissionID uuid.UUID) (bool, error) {
	commission, ok := m.commissions[commissionID]
	if !ok || commission.Status == domain.StatusPaid || commission.Status == domain.StatusCancelled {
		return false, nil
	}
	commission.Status = domain.StatusCancelled
	m.commissions[commissionID] = commission
	m.writes++
	return true, nil
}

// fakePlans maps user IDs to their current plan.
type fakePlans struct {
	plans map[uuid.UUID]identityrepo.CommissionPlan
}

func (f *fakePlans) ActivePlan(_ context.Context, _, userID uuid.UUID) (identityrepo.CommissionPlan, error) {
	plan, ok := f.plans[userID]
	if !ok {
		return identityrepo.CommissionPlan{}, apperr.NotFound("no active commission plan")
	}
	return plan, nil
}

// fakeInvoices returns a fixed invoice total.
type fakeInvoices struct {
	totalCents int64
	paidCents  int64
}

func (f *fakeInvoices) InvoiceTotals(_ context.Context, _, _ uuid.UUID) (int64, int64, error) {
	return f.totalCents, f.paidCents, nil
}

func percentagePlan(rate float64, paidWhen domain.PaidWhen) identityrepo.CommissionPlan {
	return identityrepo.CommissionPlan{
		ID:             uuid.New(),
		CommissionType: domain.TypePercentage,
		CommissionRate: rate,
		PaidWhen:       paidWhen,
		IsActive:       true,
	}
}

func TestCreateForLeadSkipsUsersWithoutPlan(t *testing.T) {
	store := newMemStore()
	salesRep := uuid.New()
	salesManager := uuid.New()
	noPlanUser := uuid.New()
	plans := &fakePlans{plans: map[uuid.UUID]identityrepo.CommissionPlan{
		salesRep:     percentagePlan(10, domain.PaidWhenFinalPayment),
		salesManager: {ID: uuid.New(), CommissionType: domain.TypeFlatAmount, FlatAmountCents: 25000, PaidWhen: domain.PaidWhenJobCompleted, IsActive: true},
	}}
	ledger := NewLedger(store, plans, &fakeInvoices{}, nil)

	orgID, leadID := uuid.New(), uuid.New()
	created, err := ledger.CreateForLead(context.Background(), orgID, leadID, map[string]uuid.UUID{
		"sales_rep":     salesRep,
		"marketing_rep": noPlanUser,
		"sales_manager": salesManager,
	}, 500000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 commissions, got %d", len(created))
	}

	byUser := make(map[uuid.UUID]repository.Commission)
	for _, commission := range created {
		byUser[commission.UserID] = commission
		if commission.Status != domain.StatusPending {
			t.Errorf("new commission must start pending, got %s", commission.Status)
		}
		if commission.BalanceOwedCents != commission.CalculatedAmountCents-commission.PaidAmountCents {
			t.Errorf("balance invariant violated on create")
		}
	}
	if byUser[salesRep].CalculatedAmountCents != 50000 {
		t.Errorf("expected 10%% of 500000 = 50000, got %d", byUser[salesRep].CalculatedAmountCents)
	}
	if byUser[salesManager].CalculatedAmountCents != 25000 {
		t.Errorf("expected flat 25000, got %d", byUser[salesManager].CalculatedAmountCents)
	}
	if _, ok := byUser[noPlanUser]; ok {
		t.Error("user without a plan must be skipped")
	}
}

func TestRecalculateIsIdempotent(t *testing.T) {
	store := newMemStore()
	salesRep := uuid.New()
	plans := &fakePlans{plans: map[uuid.UUID]identityrepo.CommissionPlan{
		salesRep: percentagePlan(10, domain.PaidWhenFinalPayment),
	}}
	invoices := &fakeInvoices{totalCents: 500000}
	ledger := NewLedger(store, plans, invoices, nil)

	orgID, leadID := uuid.New(), uuid.New()
	if _, err := ledger.CreateForLead(context.Background(), orgID, leadID,
		map[string]uuid.UUID{"sales_rep": salesRep}, 500000); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := ledger.Recalculate(context.Background(), orgID, leadID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated != 0 {
		t.Fatalf("nothing changed, expected 0 writes, got %d", updated)
	}

	// Mid-cycle rate change: recalculation re-reads the live plan.
	plan := plans.plans[salesRep]
	plan.CommissionRate = 12
	plans.plans[salesRep] = plan

	updated, err = ledger.Recalculate(context.Background(), orgID, leadID)
	if err != nil {
		t.Fatalf("recalculate after rate change: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 write after rate change, got %d", updated)
	}

	writesBefore := store.writes
	updated, err = ledger.Recalculate(context.Background(), orgID, leadID)
	if err != nil {
		t.Fatalf("second recalculate: %v", err)
	}
	if updated != 0 || store.writes != writesBefore {
		t.Fatalf("repeat recalculate must write nothing, got %d updates", updated)
	}

	rows, _ := ledger.ListByLead(context.Background(), orgID, leadID)
	if rows[0].CalculatedAmountCents != 60000 {
		t.Fatalf("expected 12%% of 500000 = 60000, got %d", rows[0].CalculatedAmountCents)
	}
	if rows[0].BalanceOwedCents != 60000 {
		t.Fatalf("balance must track recalculated amount, got %d", rows[0].BalanceOwedCents)
	}
}

func TestRecalculateSkipsCancelledRows(t *testing.T) {
	store := newMemStore()
	salesRep := uuid.New()
	plans := &fakePlans{plans: map[uuid.UUID]identityrepo.CommissionPlan{
		salesRep: percentagePlan(10, domain.PaidWhenFinalPayment),
	}}
	ledger := NewLedger(store, plans, &fakeInvoices{totalCents: 100000}, nil)

	orgID, leadID := uuid.New(), uuid.New()
	created, _ := ledger.CreateForLead(context.Background(), orgID, leadID,
		map[string]uuid.UUID{"sales_rep": salesRep}, 50000)
	if err := ledger.Cancel(context.Background(), orgID, created[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	updated, err := ledger.Recalculate(context.Background(), orgID, leadID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated != 0 {
		t.Fatalf("cancelled rows are excluded from recalculation, got %d writes", updated)
	}
}

func TestRecordPaymentPartialThenRemainder(t *testing.T) {
	store := newMemStore()
	salesRep := uuid.New()
	plans := &fakePlans{plans: map[uuid.UUID]identityrepo.CommissionPlan{
		salesRep: percentagePlan(10, domain.PaidWhenFinalPayment),
	}}
	ledger := NewLedger(store, plans, &fakeInvoices{}, nil)

	orgID, leadID := uuid.New(), uuid.New()
	created, _ := ledger.CreateForLead(context.Background(), orgID, leadID,
		map[string]uuid.UUID{"sales_rep": salesRep}, 1000000) // calculated: 100000
	commissionID := created[0].ID
	paidBy := uuid.New()

	partial := int64(40000)
	commission, err := ledger.RecordPayment(context.Background(), orgID, commissionID, paidBy, &partial, nil)
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if commission.PaidAmountCents != 40000 {
		t.Fatalf("expected paid 40000, got %d", commission.PaidAmountCents)
	}
	if commission.BalanceOwedCents != 60000 {
		t.Fatalf("expected balance 60000, got %d", commission.BalanceOwedCents)
	}
	if commission.Status != domain.StatusPending {
		t.Fatalf("partial payment resets status to pending, got %s", commission.Status)
	}
	if commission.PaidDate != nil {
		t.Fatal("partial payment must not set paid date")
	}

	// No amount pays the full remaining balance.
	commission, err = ledger.RecordPayment(context.Background(), orgID, commissionID, paidBy, nil, nil)
	if err != nil {
		t.Fatalf("remainder payment: %v", err)
	}
	if commission.PaidAmountCents != 100000 || commission.BalanceOwedCents != 0 {
		t.Fatalf("expected fully settled, got paid=%d balance=%d", commission.PaidAmountCents, commission.BalanceOwedCents)
	}
	if commission.Status != domain.StatusPaid {
		t.Fatalf("expected status paid, got %s", commission.Status)
	}
	if commission.PaidBy == nil || *commission.PaidBy != paidBy {
		t.Fatal("expected paid_by recorded on settlement")
	}
}

func TestRecordPaymentRejectsCancelled(t *testing.T) {
	store := newMemStore()
	salesRep := uuid.New()
	plans := &fakePlans{plans: map[uuid.UUID]identityrepo.CommissionPlan{
		salesRep: percentagePlan(10, domain.PaidWhenFinalPayment),
	}}
	ledger := NewLedger(store, plans, &fakeInvoices{}, nil)

	orgID, leadID := uuid.New(), uuid.New()
	created, _ := ledger.CreateForLead(context.Background(), orgID, leadID,
		map[string]uuid.UUID{"sales_rep": salesRep}, 100000)
	_ = ledger.Cancel(context.Background(), orgID, created[0].ID)

	_, err := ledger.RecordPayment(context.Background(), orgID, created[0].ID, uuid.New(), nil, nil)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestOutstandingBalance(t *testing.T) {
	store := newMemStore()
	repA, repB := uuid.New(), uuid.New()
	plans := &fakePlans{plans: map[uuid.UUID]identityrepo.CommissionPlan{
		repA: percentagePlan(10, domain.PaidWhenFinalPayment),
		repB: percentagePlan(5, domain.PaidWhenFinalPayment),
	}}
	ledger := NewLedger(store, plans, &fakeInvoices{}, nil)

	orgID, leadID := uuid.New(), uuid.New()
	created, _ := ledger.CreateForLead(context.Background(), orgID, leadID,
		map[string]uuid.UUID{"sales_rep": repA, "marketing_rep": repB}, 1000000) // 100000 + 50000

	total, err := ledger.OutstandingBalance(context.Background(), orgID, leadID)
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if total != 150000 {
		t.Fatalf("expected 150000 outstanding, got %d", total)
	}

	// Settling one commission reduces the outstanding balance.
	var first uuid.UUID
	for _, commission := range created {
		first = commission.ID
		break
	}
	if _, err := ledger.RecordPayment(context.Background(), orgID, first, uuid.New(), nil, nil); err != nil {
		t.Fatalf("record payment: %v", err)
	}
	total, _ = ledger.OutstandingBalance(context.Background(), orgID, leadID)
	settled := store.commissions[first].CalculatedAmountCents
	if total != 150000-settled {
		t.Fatalf("expected %d outstanding, got %d", 150000-settled, total)
	}
}
