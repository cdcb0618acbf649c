// Package service provides business logic for leads: intake, reads, and the
// lifecycle state machine over the status catalog.
package service

import (
	"context"

	"roofcrm_backend/internal/events"
	"roofcrm_backend/internal/leads/domain"
	"roofcrm_backend/internal/leads/repository"
	"roofcrm_backend/platform/logger"
	"roofcrm_backend/platform/phone"
	"roofcrm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Store is the persistence surface the lifecycle service needs. Implemented by
// *repository.Repository, including transaction-bound copies.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, organizationID, leadID uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]repository.Lead, error)
	UpdateStatus(ctx context.Context, organizationID, leadID uuid.UUID, status domain.Status, subStatus domain.SubStatus) error
	AppendTransition(ctx context.Context, params repository.AppendTransitionParams) (repository.TransitionRecord, error)
	ListTransitions(ctx context.Context, organizationID, leadID uuid.UUID) ([]repository.TransitionRecord, error)
}

// Service provides business logic for leads.
type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

// New creates a new leads service.
func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// WithBus attaches an event bus. Transitions applied through this instance
// publish domain events.
func (s *Service) WithBus(bus events.Bus) *Service {
	s.bus = bus
	return s
}

// WithStore returns a copy of the service bound to another store, typically a
// transaction-bound repository, so lifecycle transitions can join the caller's
// transactional unit. The copy does not carry the event bus: inside a
// transaction the caller dispatches events after commit.
func (s *Service) WithStore(store Store) *Service {
	return &Service{store: store, log: s.log}
}

// Create registers a new lead from intake. Free-text consumer fields are
// stripped of markup and phone numbers are normalized to E.164 before
// persistence.
func (s *Service) Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	params.ConsumerFirstName = sanitize.Text(params.ConsumerFirstName)
	params.ConsumerLastName = sanitize.Text(params.ConsumerLastName)
	params.AddressStreet = sanitize.Text(params.AddressStreet)
	params.AddressCity = sanitize.Text(params.AddressCity)
	params.Source = sanitize.TextPtr(params.Source)
	params.ConsumerPhone = phone.NormalizeE164(params.ConsumerPhone)

	lead, err := s.store.Create(ctx, params)
	if err != nil {
		return repository.Lead{}, err
	}

	if s.bus != nil {
		event := events.LeadCreated{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			OrganizationID: lead.OrganizationID,
			ConsumerName:   lead.ConsumerFirstName + " " + lead.ConsumerLastName,
			ConsumerPhone:  lead.ConsumerPhone,
		}
		if lead.ConsumerEmail != nil {
			event.ConsumerEmail = *lead.ConsumerEmail
		}
		if lead.Source != nil {
			event.Source = *lead.Source
		}
		s.bus.Publish(ctx, event)
	}

	return lead, nil
}

// Get fetches one lead.
func (s *Service) Get(ctx context.Context, organizationID, leadID uuid.UUID) (repository.Lead, error) {
	return s.store.GetByID(ctx, organizationID, leadID)
}

// List returns leads for an organization, newest first.
func (s *Service) List(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]repository.Lead, error) {
	return s.store.List(ctx, organizationID, limit, offset)
}

// History returns a lead's status transition audit trail in creation order.
func (s *Service) History(ctx context.Context, organizationID, leadID uuid.UUID) ([]repository.TransitionRecord, error) {
	if _, err := s.store.GetByID(ctx, organizationID, leadID); err != nil {
		return nil, err
	}
	return s.store.ListTransitions(ctx, organizationID, leadID)
}
