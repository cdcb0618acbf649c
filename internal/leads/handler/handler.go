package handler

import (
	"context"
	"net/http"
	"strconv"

	"roofcrm_backend/internal/leads/domain"
	"roofcrm_backend/internal/leads/repository"
	"roofcrm_backend/internal/leads/service"
	"roofcrm_backend/internal/leads/transport"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/httpkit"
	"roofcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// PermissionChecker verifies the acting user holds a named permission.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
}

type Handler struct {
	svc      *service.Service
	perms    PermissionChecker
	validate *validator.Validator
}

func New(svc *service.Service, perms PermissionChecker, validate *validator.Validator) *Handler {
	return &Handler{svc: svc, perms: perms, validate: validate}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/statuses", h.StatusCatalog)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.Transition)
	rg.GET("/:id/history", h.History)
}

func (h *Handler) Create(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), repository.CreateLeadParams{
		OrganizationID:      orgID,
		ConsumerFirstName:   req.FirstName,
		ConsumerLastName:    req.LastName,
		ConsumerPhone:       req.Phone,
		ConsumerEmail:       req.Email,
		AddressStreet:       req.Street,
		AddressCity:         req.City,
		AddressZipCode:      req.ZipCode,
		SalesRepID:          req.SalesRepID,
		MarketingRepID:      req.MarketingRepID,
		SalesManagerID:      req.SalesManagerID,
		ProductionManagerID: req.ProductionManagerID,
		Source:              req.Source,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToLeadResponse(lead))
}

func (h *Handler) GetByID(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	leads, err := h.svc.List(c.Request.Context(), orgID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

// Transition applies a manual lifecycle transition. Guarded target pairs are
// checked against the acting user's permissions before anything is written.
func (h *Handler) Transition(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	actingUser := identity.UserID()

	check, err := h.svc.Validate(c.Request.Context(), orgID, id,
		domain.Status(req.Status), domain.SubStatus(req.SubStatus))
	if httpkit.HandleError(c, err) {
		return
	}
	if check.RequiresPermission != "" {
		allowed, err := h.perms.HasPermission(c.Request.Context(), actingUser, string(check.RequiresPermission))
		if httpkit.HandleError(c, err) {
			return
		}
		if !allowed {
			httpkit.HandleError(c, apperr.Forbidden("missing permission: "+string(check.RequiresPermission)))
			return
		}
	}

	lead, err := h.svc.Apply(c.Request.Context(), service.ApplyParams{
		OrganizationID:  orgID,
		LeadID:          id,
		TargetStatus:    domain.Status(req.Status),
		TargetSubStatus: domain.SubStatus(req.SubStatus),
		ActingUser:      &actingUser,
		Metadata:        req.Metadata,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) History(c *gin.Context) {
	orgID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	records, err := h.svc.History(c.Request.Context(), orgID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTransitionResponses(records))
}

func (h *Handler) StatusCatalog(c *gin.Context) {
	httpkit.OK(c, transport.StatusCatalog())
}
