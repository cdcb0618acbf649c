package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"roofcrm_backend/internal/commissions/domain"
	"roofcrm_backend/internal/commissions/repository"
	"roofcrm_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakePerms struct {
	granted map[uuid.UUID]bool
}

func (f *fakePerms) HasPermission(_ context.Context, userID uuid.UUID, _ string) (bool, error) {
	return f.granted[userID], nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []uuid.UUID
	fail  bool
	calls int
}

func (r *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, _, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return context.DeadlineExceeded
	}
	r.sent = append(r.sent, userID)
	return nil
}

func seedEligible(store *memStore, orgID, leadID uuid.UUID, amountCents int64) uuid.UUID {
	commission, _ := store.Create(context.Background(), createParamsFor(orgID, leadID, amountCents))
	stored := store.commissions[commission.ID]
	stored.Status = domain.StatusEligible
	store.commissions[commission.ID] = stored
	return commission.ID
}

func createParamsFor(orgID, leadID uuid.UUID, amountCents int64) repository.CreateParams {
	return repository.CreateParams{
		OrganizationID:        orgID,
		LeadID:                leadID,
		UserID:                uuid.New(),
		PlanID:                uuid.New(),
		Role:                  "sales_rep",
		CommissionType:        domain.TypeFlatAmount,
		FlatAmountCents:       amountCents,
		CalculatedAmountCents: amountCents,
		PaidWhen:              domain.PaidWhenFinalPayment,
	}
}

func TestApproveOne(t *testing.T) {
	store := newMemStore()
	approver := uuid.New()
	perms := &fakePerms{granted: map[uuid.UUID]bool{approver: true}}
	notifier := &recordingNotifier{}
	workflow := NewWorkflow(store, perms, notifier, "https://app.example.com", nil)

	orgID, leadID := uuid.New(), uuid.New()
	commissionID := seedEligible(store, orgID, leadID, 50000)

	commission, err := workflow.ApproveOne(context.Background(), orgID, commissionID, approver)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if commission.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", commission.Status)
	}
	if commission.ApprovedBy == nil || *commission.ApprovedBy != approver {
		t.Fatal("expected approver recorded")
	}

	// A second approval finds the row no longer eligible.
	_, err = workflow.ApproveOne(context.Background(), orgID, commissionID, approver)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state on double approve, got %v", err)
	}
}

func TestApproveOneRequiresPermission(t *testing.T) {
	store := newMemStore()
	perms := &fakePerms{granted: map[uuid.UUID]bool{}}
	workflow := NewWorkflow(store, perms, &recordingNotifier{}, "", nil)

	orgID, leadID := uuid.New(), uuid.New()
	commissionID := seedEligible(store, orgID, leadID, 50000)

	_, err := workflow.ApproveOne(context.Background(), orgID, commissionID, uuid.New())
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if store.commissions[commissionID].Status != domain.StatusEligible {
		t.Fatal("denied approval must not change status")
	}
}

func TestApproveManyPartialSuccess(t *testing.T) {
	store := newMemStore()
	approver := uuid.New()
	perms := &fakePerms{granted: map[uuid.UUID]bool{approver: true}}
	notifier := &recordingNotifier{}
	workflow := NewWorkflow(store, perms, notifier, "https://app.example.com", nil)

	orgID, leadID := uuid.New(), uuid.New()
	eligibleID := seedEligible(store, orgID, leadID, 50000)

	pending, _ := store.Create(context.Background(), createParamsFor(orgID, leadID, 30000))
	paid, _ := store.Create(context.Background(), createParamsFor(orgID, leadID, 20000))
	stored := store.commissions[paid.ID]
	stored.Status = domain.StatusPaid
	store.commissions[paid.ID] = stored

	result, err := workflow.ApproveMany(context.Background(), orgID,
		[]uuid.UUID{eligibleID, pending.ID, paid.ID}, approver)
	if err != nil {
		t.Fatalf("approve many: %v", err)
	}
	if result.ApprovedCount != 1 {
		t.Fatalf("expected 1 approved, got %d", result.ApprovedCount)
	}
	if len(result.ApprovedIDs) != 1 || result.ApprovedIDs[0] != eligibleID {
		t.Fatalf("expected only the eligible row approved, got %v", result.ApprovedIDs)
	}
	if len(result.SkippedIDs) != 2 {
		t.Fatalf("expected 2 skipped, got %v", result.SkippedIDs)
	}
	if store.commissions[pending.ID].Status != domain.StatusPending {
		t.Error("pending row must be untouched")
	}
	if store.commissions[paid.ID].Status != domain.StatusPaid {
		t.Error("paid row must be untouched")
	}
}

func TestApproveManyEmptyInput(t *testing.T) {
	store := newMemStore()
	approver := uuid.New()
	perms := &fakePerms{granted: map[uuid.UUID]bool{approver: true}}
	workflow := NewWorkflow(store, perms, &recordingNotifier{}, "", nil)

	result, err := workflow.ApproveMany(context.Background(), uuid.New(), nil, approver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ApprovedCount != 0 || len(result.ApprovedIDs) != 0 || len(result.SkippedIDs) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestMarkPaidFromApprovedOnly(t *testing.T) {
	store := newMemStore()
	approver := uuid.New()
	perms := &fakePerms{granted: map[uuid.UUID]bool{approver: true}}
	workflow := NewWorkflow(store, perms, &recordingNotifier{}, "", nil)

	orgID, leadID := uuid.New(), uuid.New()
	commissionID := seedEligible(store, orgID, leadID, 50000)

	paidDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	// Eligible is not payable through this entry point.
	_, err := workflow.MarkPaid(context.Background(), orgID, commissionID, paidDate, "CHK-1042", approver)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state paying an eligible row, got %v", err)
	}

	if _, err := workflow.ApproveOne(context.Background(), orgID, commissionID, approver); err != nil {
		t.Fatalf("approve: %v", err)
	}
	commission, err := workflow.MarkPaid(context.Background(), orgID, commissionID, paidDate, "CHK-1042", approver)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if commission.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", commission.Status)
	}
	if commission.PaidAmountCents != 50000 || commission.BalanceOwedCents != 0 {
		t.Fatalf("mark paid settles in full, got paid=%d balance=%d", commission.PaidAmountCents, commission.BalanceOwedCents)
	}
	if commission.PaymentReference == nil || *commission.PaymentReference != "CHK-1042" {
		t.Fatal("expected payment reference recorded")
	}
	if commission.PaidDate == nil || !commission.PaidDate.Equal(paidDate) {
		t.Fatal("expected paid date recorded")
	}
}

func TestNotificationFailureDoesNotFailApproval(t *testing.T) {
	store := newMemStore()
	approver := uuid.New()
	perms := &fakePerms{granted: map[uuid.UUID]bool{approver: true}}
	notifier := &recordingNotifier{fail: true}
	workflow := NewWorkflow(store, perms, notifier, "", nil)

	orgID, leadID := uuid.New(), uuid.New()
	commissionID := seedEligible(store, orgID, leadID, 50000)

	commission, err := workflow.ApproveOne(context.Background(), orgID, commissionID, approver)
	if err != nil {
		t.Fatalf("approval must succeed despite notifier failure: %v", err)
	}
	if commission.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", commission.Status)
	}
}
