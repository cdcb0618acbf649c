package transport

import (
	"time"

	"roofcrm_backend/internal/billing/repository"

	"github.com/google/uuid"
)

// Request DTOs
type CreateInvoiceRequest struct {
	InvoiceNumber string     `json:"invoiceNumber" validate:"required,min=1,max=50"`
	TotalCents    int64      `json:"totalCents" validate:"required,gt=0"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
}

type RecordPaymentRequest struct {
	AmountCents   int64      `json:"amountCents" validate:"required,gt=0"`
	PaymentMethod string     `json:"paymentMethod" validate:"required,oneof=check ach card cash other"`
	Reference     string     `json:"reference,omitempty" validate:"omitempty,max=100"`
	ReceivedAt    *time.Time `json:"receivedAt,omitempty"`
}

// Response DTOs
type InvoiceResponse struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        uuid.UUID  `json:"leadId"`
	InvoiceNumber string     `json:"invoiceNumber"`
	TotalCents    int64      `json:"totalCents"`
	PaidCents     int64      `json:"paidCents"`
	Status        string     `json:"status"`
	IssuedAt      time.Time  `json:"issuedAt"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
}

type PaymentResponse struct {
	ID                    uuid.UUID `json:"id"`
	InvoiceID             uuid.UUID `json:"invoiceId"`
	AmountCents           int64     `json:"amountCents"`
	PaymentMethod         string    `json:"paymentMethod"`
	Reference             *string   `json:"reference,omitempty"`
	ReceivedAt            time.Time `json:"receivedAt"`
	BalanceRemainingCents int64     `json:"balanceRemainingCents"`
	PaidInFull            bool      `json:"paidInFull"`
	LeadStatus            string    `json:"leadStatus"`
	LeadSubStatus         string    `json:"leadSubStatus,omitempty"`
}

func ToInvoiceResponse(invoice repository.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            invoice.ID,
		LeadID:        invoice.LeadID,
		InvoiceNumber: invoice.InvoiceNumber,
		TotalCents:    invoice.TotalCents,
		PaidCents:     invoice.PaidCents,
		Status:        invoice.Status,
		IssuedAt:      invoice.IssuedAt,
		DueDate:       invoice.DueDate,
	}
}

func ToInvoiceResponses(invoices []repository.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, ToInvoiceResponse(invoice))
	}
	return out
}
