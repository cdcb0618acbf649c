// Package leads is the lead lifecycle bounded context: lead intake, the
// status state machine, and the append-only transition history.
package leads

import (
	"roofcrm_backend/internal/events"
	apphttp "roofcrm_backend/internal/http"
	"roofcrm_backend/internal/leads/handler"
	"roofcrm_backend/internal/leads/repository"
	"roofcrm_backend/internal/leads/service"
	"roofcrm_backend/platform/logger"
	"roofcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, perms handler.PermissionChecker, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log).WithBus(bus)
	h := handler.New(svc, perms, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lifecycle service for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for transaction composition.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}
