// Package events provides domain event definitions for decoupled
// communication between modules. Infrastructure (Bus, Handler) is in
// platform/events.
package events

import (
	"time"

	"roofcrm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadCreated is published when a new lead enters the pipeline.
type LeadCreated struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ConsumerName   string    `json:"consumerName"`
	ConsumerPhone  string    `json:"consumerPhone"`
	ConsumerEmail  string    `json:"consumerEmail"`
	Source         string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStatusChanged is published after every recorded lifecycle transition,
// manual or automated.
type LeadStatusChanged struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	FromStatus     string     `json:"fromStatus"`
	FromSubStatus  string     `json:"fromSubStatus,omitempty"`
	ToStatus       string     `json:"toStatus"`
	ToSubStatus    string     `json:"toSubStatus"`
	ChangedBy      *uuid.UUID `json:"changedBy,omitempty"`
	Automated      bool       `json:"automated"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadClosed is published when a lead reaches its terminal status.
type LeadClosed struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	SubStatus      string    `json:"subStatus"`
}

func (e LeadClosed) EventName() string { return "leads.lead.closed" }

// =============================================================================
// Billing Events
// =============================================================================

// InvoiceCreated is published when an invoice is issued for a lead.
type InvoiceCreated struct {
	BaseEvent
	InvoiceID      uuid.UUID `json:"invoiceId"`
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	InvoiceNumber  string    `json:"invoiceNumber"`
	TotalCents     int64     `json:"totalCents"`
}

func (e InvoiceCreated) EventName() string { return "billing.invoice.created" }

// InvoicePaymentRecorded is published after a customer payment lands.
type InvoicePaymentRecorded struct {
	BaseEvent
	InvoiceID             uuid.UUID `json:"invoiceId"`
	LeadID                uuid.UUID `json:"leadId"`
	OrganizationID        uuid.UUID `json:"organizationId"`
	AmountCents           int64     `json:"amountCents"`
	BalanceRemainingCents int64     `json:"balanceRemainingCents"`
	PaidInFull            bool      `json:"paidInFull"`
}

func (e InvoicePaymentRecorded) EventName() string { return "billing.payment.recorded" }

// =============================================================================
// Commission Events
// =============================================================================

// CommissionsEligible is published when pending commissions flip to eligible
// after their payout trigger fires.
type CommissionsEligible struct {
	BaseEvent
	LeadID         uuid.UUID   `json:"leadId"`
	OrganizationID uuid.UUID   `json:"organizationId"`
	CommissionIDs  []uuid.UUID `json:"commissionIds"`
	UserIDs        []uuid.UUID `json:"userIds"`
	Trigger        string      `json:"trigger"`
}

func (e CommissionsEligible) EventName() string { return "commissions.eligible" }

// CommissionApproved is published when an approver releases a commission for
// payout.
type CommissionApproved struct {
	BaseEvent
	CommissionID uuid.UUID `json:"commissionId"`
	LeadID       uuid.UUID `json:"leadId"`
	UserID       uuid.UUID `json:"userId"`
	AmountCents  int64     `json:"amountCents"`
	ApprovedBy   uuid.UUID `json:"approvedBy"`
}

func (e CommissionApproved) EventName() string { return "commissions.approved" }

// CommissionPaid is published when a commission is settled in full.
type CommissionPaid struct {
	BaseEvent
	CommissionID     uuid.UUID  `json:"commissionId"`
	LeadID           uuid.UUID  `json:"leadId"`
	UserID           uuid.UUID  `json:"userId"`
	AmountCents      int64      `json:"amountCents"`
	PaidDate         time.Time  `json:"paidDate"`
	PaymentReference *string    `json:"paymentReference,omitempty"`
	PaidBy           *uuid.UUID `json:"paidBy,omitempty"`
}

func (e CommissionPaid) EventName() string { return "commissions.paid" }
