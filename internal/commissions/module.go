// Package commissions is the commission settlement bounded context: the
// per-lead commission ledger and the permission-gated approval workflow.
package commissions

import (
	"roofcrm_backend/internal/commissions/handler"
	"roofcrm_backend/internal/commissions/repository"
	"roofcrm_backend/internal/commissions/service"
	"roofcrm_backend/internal/events"
	apphttp "roofcrm_backend/internal/http"
	identityservice "roofcrm_backend/internal/identity/service"
	"roofcrm_backend/platform/logger"
	"roofcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the commissions bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	ledger   *service.Ledger
	workflow *service.Workflow
	repo     *repository.Repository
}

// NewModule creates and initializes the commissions module. The invoice
// source and notifier are collaborators owned by other modules; the identity
// service doubles as plan directory and permission checker.
func NewModule(pool *pgxpool.Pool, identity *identityservice.Service, invoices service.InvoiceSource,
	notifier service.Notifier, bus events.Bus, appBaseURL string, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	ledger := service.NewLedger(repo, identity, invoices, log)
	workflow := service.NewWorkflow(repo, identity, notifier, appBaseURL, log).WithBus(bus)
	h := handler.New(ledger, workflow, val)

	return &Module{
		handler:  h,
		ledger:   ledger,
		workflow: workflow,
		repo:     repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "commissions"
}

// Ledger returns the commission ledger for cross-module wiring.
func (m *Module) Ledger() *service.Ledger {
	return m.ledger
}

// Repository returns the repository for transaction composition.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts commission routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/commissions"))
	m.handler.RegisterLeadRoutes(ctx.Protected.Group("/leads"))
}
