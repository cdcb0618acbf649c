// Package service exposes the identity directory to the rest of the
// application: permission checks and commission plan lookups.
package service

import (
	"context"

	"roofcrm_backend/internal/identity/repository"

	"github.com/google/uuid"
)

// Service provides read access to users, permissions, and commission plans.
type Service struct {
	repo *repository.Repository
}

// New creates a new identity service.
func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// HasPermission implements the permission checker collaborator consumed by
// the commission approval workflow and the lifecycle handlers.
func (s *Service) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	return s.repo.HasPermission(ctx, userID, permission)
}

// ActivePlan implements the plan directory collaborator consumed by the
// commission ledger.
func (s *Service) ActivePlan(ctx context.Context, organizationID, userID uuid.UUID) (repository.CommissionPlan, error) {
	return s.repo.ActivePlanForUser(ctx, organizationID, userID)
}

// GetUser fetches one user scoped to the organization.
func (s *Service) GetUser(ctx context.Context, organizationID, userID uuid.UUID) (repository.User, error) {
	return s.repo.GetUser(ctx, organizationID, userID)
}

// GetUserByID fetches one user by id alone. Used by notification fan-out,
// where events carry only the recipient's user id.
func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (repository.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}
