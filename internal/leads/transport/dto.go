package transport

import (
	"time"

	"roofcrm_backend/internal/leads/domain"
	"roofcrm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	FirstName           string     `json:"firstName" validate:"required,min=1,max=100"`
	LastName            string     `json:"lastName" validate:"required,min=1,max=100"`
	Phone               string     `json:"phone" validate:"required,min=5,max=20"`
	Email               *string    `json:"email,omitempty" validate:"omitempty,email"`
	Street              string     `json:"street" validate:"required,min=1,max=200"`
	City                string     `json:"city" validate:"required,min=1,max=100"`
	ZipCode             string     `json:"zipCode" validate:"required,min=1,max=20"`
	SalesRepID          *uuid.UUID `json:"salesRepId,omitempty"`
	MarketingRepID      *uuid.UUID `json:"marketingRepId,omitempty"`
	SalesManagerID      *uuid.UUID `json:"salesManagerId,omitempty"`
	ProductionManagerID *uuid.UUID `json:"productionManagerId,omitempty"`
	Source              *string    `json:"source,omitempty" validate:"omitempty,max=100"`
}

type TransitionRequest struct {
	Status    string         `json:"status" validate:"required,oneof=NEW_LEAD QUOTE PRODUCTION INVOICED CLOSED"`
	SubStatus string         `json:"subStatus,omitempty" validate:"omitempty,max=50"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Response DTOs
type LeadResponse struct {
	ID                  uuid.UUID  `json:"id"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Phone               string     `json:"phone"`
	Email               *string    `json:"email,omitempty"`
	Street              string     `json:"street"`
	City                string     `json:"city"`
	ZipCode             string     `json:"zipCode"`
	Status              string     `json:"status"`
	SubStatus           string     `json:"subStatus,omitempty"`
	SalesRepID          *uuid.UUID `json:"salesRepId,omitempty"`
	MarketingRepID      *uuid.UUID `json:"marketingRepId,omitempty"`
	SalesManagerID      *uuid.UUID `json:"salesManagerId,omitempty"`
	ProductionManagerID *uuid.UUID `json:"productionManagerId,omitempty"`
	Source              *string    `json:"source,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type TransitionRecordResponse struct {
	ID            uuid.UUID      `json:"id"`
	FromStatus    string         `json:"fromStatus"`
	FromSubStatus string         `json:"fromSubStatus,omitempty"`
	ToStatus      string         `json:"toStatus"`
	ToSubStatus   string         `json:"toSubStatus"`
	Automated     bool           `json:"automated"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ChangedBy     *uuid.UUID     `json:"changedBy,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// StatusCatalogEntry describes one pipeline status for clients that render
// status pickers.
type StatusCatalogEntry struct {
	Status             string            `json:"status"`
	SubStatuses        []string          `json:"subStatuses"`
	DefaultSubStatus   string            `json:"defaultSubStatus"`
	Terminal           bool              `json:"terminal"`
	RequiresPermission map[string]string `json:"requiresPermission,omitempty"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	resp := LeadResponse{
		ID:                  lead.ID,
		FirstName:           lead.ConsumerFirstName,
		LastName:            lead.ConsumerLastName,
		Phone:               lead.ConsumerPhone,
		Email:               lead.ConsumerEmail,
		Street:              lead.AddressStreet,
		City:                lead.AddressCity,
		ZipCode:             lead.AddressZipCode,
		Status:              string(lead.Status),
		SalesRepID:          lead.SalesRepID,
		MarketingRepID:      lead.MarketingRepID,
		SalesManagerID:      lead.SalesManagerID,
		ProductionManagerID: lead.ProductionManagerID,
		Source:              lead.Source,
		CreatedAt:           lead.CreatedAt,
		UpdatedAt:           lead.UpdatedAt,
	}
	if lead.SubStatus != nil {
		resp.SubStatus = string(*lead.SubStatus)
	}
	return resp
}

func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}

func ToTransitionResponse(record repository.TransitionRecord) TransitionRecordResponse {
	resp := TransitionRecordResponse{
		ID:          record.ID,
		FromStatus:  string(record.FromStatus),
		ToStatus:    string(record.ToStatus),
		ToSubStatus: string(record.ToSubStatus),
		Automated:   record.Automated,
		Metadata:    record.Metadata,
		ChangedBy:   record.ChangedBy,
		CreatedAt:   record.CreatedAt,
	}
	if record.FromSubStatus != nil {
		resp.FromSubStatus = string(*record.FromSubStatus)
	}
	return resp
}

func ToTransitionResponses(records []repository.TransitionRecord) []TransitionRecordResponse {
	out := make([]TransitionRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, ToTransitionResponse(record))
	}
	return out
}

// StatusCatalog renders the full status catalog, including which transitions
// need a permission.
func StatusCatalog() []StatusCatalogEntry {
	entries := make([]StatusCatalogEntry, 0)
	for _, status := range domain.Statuses() {
		defaultSub, _ := domain.DefaultSubStatus(status)
		entry := StatusCatalogEntry{
			Status:           string(status),
			DefaultSubStatus: string(defaultSub),
			Terminal:         domain.IsTerminal(status),
		}
		for _, sub := range domain.SubStatuses(status) {
			entry.SubStatuses = append(entry.SubStatuses, string(sub))
			if perm, ok := domain.RequiredPermission(status, sub); ok {
				if entry.RequiresPermission == nil {
					entry.RequiresPermission = make(map[string]string)
				}
				entry.RequiresPermission[string(sub)] = string(perm)
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
