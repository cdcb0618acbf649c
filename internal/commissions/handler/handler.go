package handler

import (
	"net/http"

	"roofcrm_backend/internal/commissions/service"
	"roofcrm_backend/internal/commissions/transport"
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
	ledger   *service.Ledger
	workflow *service.Workflow
	validate *validator.Validator
}

func New(ledger *service.Ledger, workflow *service.Workflow, validate *validator.Validator) *Handler {
	return &Handler{ledger: ledger, workflow: workflow, validate: validate}
}

// RegisterRoutes mounts commission routes. Routes that act on a single
// commission live under /commissions; per-lead views live under /leads.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/approve", h.ApproveMany)
	rg.POST("/:id/approve", h.ApproveOne)
	rg.POST("/:id/payments", h.RecordPayment)
	rg.POST("/:id/mark-paid", h.MarkPaid)
	rg.POST("/:id/cancel", h.Cancel)
}

// RegisterLeadRoutes mounts the per-lead commission views on the lead router.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/commissions", h.ListByLead)
	rg.POST("/:id/commissions/recalculate", h.Recalculate)
}

func (h *Handler) ListByLead(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	commissions, err := h.ledger.ListByLead(c.Request.Context(), orgID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCommissionResponses(commissions))
}

func (h *Handler) Recalculate(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	updated, err := h.ledger.Recalculate(c.Request.Context(), orgID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RecalculateResponse{Updated: updated})
}

func (h *Handler) ApproveOne(c *gin.Context) {
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

	commission, err := h.workflow.ApproveOne(c.Request.Context(), orgID, id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCommissionResponse(commission))
}

func (h *Handler) ApproveMany(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ApproveManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.workflow.ApproveMany(c.Request.Context(), orgID, req.CommissionIDs, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
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

	commission, err := h.ledger.RecordPayment(c.Request.Context(), orgID, id, identity.UserID(),
		req.AmountCents, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCommissionResponse(commission))
}

func (h *Handler) MarkPaid(c *gin.Context) {
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

	var req transport.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	commission, err := h.workflow.MarkPaid(c.Request.Context(), orgID, id,
		req.PaidDate, req.PaymentReference, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCommissionResponse(commission))
}

func (h *Handler) Cancel(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.ledger.Cancel(c.Request.Context(), orgID, id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}
