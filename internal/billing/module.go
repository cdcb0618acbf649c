// Package billing is the invoicing bounded context: invoices, payments, and
// the bridge that moves leads and commissions when billing events land.
package billing

import (
	"roofcrm_backend/internal/billing/handler"
	"roofcrm_backend/internal/billing/repository"
	"roofcrm_backend/internal/billing/service"
	commissionrepo "roofcrm_backend/internal/commissions/repository"
	commissionservice "roofcrm_backend/internal/commissions/service"
	"roofcrm_backend/internal/events"
	apphttp "roofcrm_backend/internal/http"
	leadrepo "roofcrm_backend/internal/leads/repository"
	leadservice "roofcrm_backend/internal/leads/service"
	"roofcrm_backend/platform/logger"
	"roofcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the billing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	bridge  *service.Bridge
	repo    *repository.Repository
}

// NewModule creates and initializes the billing module. It composes the
// transaction runner over the leads and commissions repositories so each
// bridge operation commits atomically across all three contexts. The invoice
// repository is passed in because the commission ledger shares it as its
// invoice source.
func NewModule(pool *pgxpool.Pool, repo *repository.Repository, leads *leadrepo.Repository,
	commissions *commissionrepo.Repository, lifecycle *leadservice.Service, ledger *commissionservice.Ledger,
	dedupeStore service.DedupeStore, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	runner := service.NewTxRunner(pool, repo, leads, commissions, lifecycle, ledger)
	bridge := service.NewBridge(runner, dedupeStore, bus, log)
	h := handler.New(bridge, repo, val)

	return &Module{
		handler: h,
		bridge:  bridge,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "billing"
}

// Repository returns the invoice repository; it implements the commission
// ledger's invoice source.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Bridge returns the lifecycle bridge for cross-module wiring.
func (m *Module) Bridge() *service.Bridge {
	return m.bridge
}

// RegisterRoutes mounts invoice and payment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/invoices"))
	m.handler.RegisterLeadRoutes(ctx.Protected.Group("/leads"))
}
