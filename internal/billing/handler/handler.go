package handler

import (
	"net/http"
	"time"

	"roofcrm_backend/internal/billing/repository"
	"roofcrm_backend/internal/billing/service"
	"roofcrm_backend/internal/billing/transport"
	"roofcrm_backend/platform/httpkit"
	"roofcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	bridge   *service.Bridge
	invoices *repository.Repository
	validate *validator.Validator
}

func New(bridge *service.Bridge, invoices *repository.Repository, validate *validator.Validator) *Handler {
	return &Handler{bridge: bridge, invoices: invoices, validate: validate}
}

// RegisterLeadRoutes mounts invoice issuing and job completion on the lead
// router.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/invoices", h.ListInvoices)
	rg.POST("/:id/invoices", h.CreateInvoice)
	rg.POST("/:id/job-completed", h.CompleteJob)
}

// RegisterRoutes mounts per-invoice routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.GetInvoice)
	rg.POST("/:id/payments", h.RecordPayment)
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.bridge.OnInvoiceCreated(c.Request.Context(), service.CreateInvoiceParams{
		OrganizationID: orgID,
		LeadID:         leadID,
		InvoiceNumber:  req.InvoiceNumber,
		TotalCents:     req.TotalCents,
		DueDate:        req.DueDate,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToInvoiceResponse(result.Invoice))
}

func (h *Handler) ListInvoices(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	invoices, err := h.invoices.ListInvoicesByLead(c.Request.Context(), orgID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToInvoiceResponses(invoices))
}

func (h *Handler) GetInvoice(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	invoice, err := h.invoices.GetInvoice(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToInvoiceResponse(invoice))
}

func (h *Handler) RecordPayment(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	receivedAt := time.Now().UTC()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	result, err := h.bridge.OnPaymentRecorded(c.Request.Context(), service.RecordPaymentParams{
		OrganizationID: orgID,
		InvoiceID:      id,
		AmountCents:    req.AmountCents,
		PaymentMethod:  req.PaymentMethod,
		Reference:      req.Reference,
		RecordedBy:     identity.UserID(),
		ReceivedAt:     receivedAt,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.PaymentResponse{
		ID:                    result.Payment.ID,
		InvoiceID:             result.Payment.InvoiceID,
		AmountCents:           result.Payment.AmountCents,
		PaymentMethod:         result.Payment.PaymentMethod,
		Reference:             result.Payment.Reference,
		ReceivedAt:            result.Payment.ReceivedAt,
		BalanceRemainingCents: result.BalanceRemainingCents,
		PaidInFull:            result.PaidInFull,
		LeadStatus:            result.LeadStatus,
		LeadSubStatus:         result.LeadSubStatus,
	})
}

func (h *Handler) CompleteJob(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.bridge.OnJobCompleted(c.Request.Context(), orgID, leadID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}
