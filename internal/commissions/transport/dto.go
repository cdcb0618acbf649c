package transport

import (
	"time"

	"roofcrm_backend/internal/commissions/repository"

	"github.com/google/uuid"
)

// Request DTOs
type ApproveManyRequest struct {
	CommissionIDs []uuid.UUID `json:"commissionIds" validate:"required,min=1,max=100"`
}

type RecordPaymentRequest struct {
	AmountCents *int64  `json:"amountCents,omitempty" validate:"omitempty,gt=0"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type MarkPaidRequest struct {
	PaidDate         time.Time `json:"paidDate" validate:"required"`
	PaymentReference string    `json:"paymentReference" validate:"required,min=1,max=100"`
}

// Response DTOs
type CommissionResponse struct {
	ID                    uuid.UUID  `json:"id"`
	LeadID                uuid.UUID  `json:"leadId"`
	UserID                uuid.UUID  `json:"userId"`
	Role                  string     `json:"role"`
	CommissionType        string     `json:"commissionType"`
	CommissionRate        float64    `json:"commissionRate"`
	FlatAmountCents       int64      `json:"flatAmountCents"`
	BaseAmountCents       int64      `json:"baseAmountCents"`
	CalculatedAmountCents int64      `json:"calculatedAmountCents"`
	PaidAmountCents       int64      `json:"paidAmountCents"`
	BalanceOwedCents      int64      `json:"balanceOwedCents"`
	PaidWhen              string     `json:"paidWhen"`
	Status                string     `json:"status"`
	ApprovedBy            *uuid.UUID `json:"approvedBy,omitempty"`
	ApprovedAt            *time.Time `json:"approvedAt,omitempty"`
	PaidDate              *time.Time `json:"paidDate,omitempty"`
	PaymentReference      *string    `json:"paymentReference,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

type RecalculateResponse struct {
	Updated int `json:"updated"`
}

func ToCommissionResponse(commission repository.Commission) CommissionResponse {
	return CommissionResponse{
		ID:                    commission.ID,
		LeadID:                commission.LeadID,
		UserID:                commission.UserID,
		Role:                  commission.Role,
		CommissionType:        string(commission.CommissionType),
		CommissionRate:        commission.CommissionRate,
		FlatAmountCents:       commission.FlatAmountCents,
		BaseAmountCents:       commission.BaseAmountCents,
		CalculatedAmountCents: commission.CalculatedAmountCents,
		PaidAmountCents:       commission.PaidAmountCents,
		BalanceOwedCents:      commission.BalanceOwedCents,
		PaidWhen:              string(commission.PaidWhen),
		Status:                string(commission.Status),
		ApprovedBy:            commission.ApprovedBy,
		ApprovedAt:            commission.ApprovedAt,
		PaidDate:              commission.PaidDate,
		PaymentReference:      commission.PaymentReference,
		Notes:                 commission.Notes,
		CreatedAt:             commission.CreatedAt,
	}
}

func ToCommissionResponses(commissions []repository.Commission) []CommissionResponse {
	out := make([]CommissionResponse, 0, len(commissions))
	for _, commission := range commissions {
		out = append(out, ToCommissionResponse(commission))
	}
	return out
}
