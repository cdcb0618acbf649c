// Package notification turns domain events into in-app notifications and
// queued email. Domain modules publish events and move on; everything about
// delivery lives here.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roofcrm_backend/internal/email"
	"roofcrm_backend/internal/events"
	apphttp "roofcrm_backend/internal/http"
	identityservice "roofcrm_backend/internal/identity/service"
	"roofcrm_backend/internal/notification/handler"
	"roofcrm_backend/internal/notification/inapp"
	"roofcrm_backend/internal/notification/outbox"
	"roofcrm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	categoryCommission = "commission"
	resourceCommission = "commission"

	kindCommissionApprovedEmail  = "email.commission.approved"
	kindCommissionPaidEmail      = "email.commission.paid"
	kindCommissionsEligibleEmail = "email.commissions.eligible"
)

// Module subscribes to domain events and fans them out to in-app
// notifications and the email outbox.
type Module struct {
	inapp      *inapp.Repository
	outbox     *outbox.Repository
	identity   *identityservice.Service
	appBaseURL string
	log        *logger.Logger
}

func NewModule(inappRepo *inapp.Repository, outboxRepo *outbox.Repository,
	identity *identityservice.Service, appBaseURL string, log *logger.Logger) *Module {
	return &Module{
		inapp:      inappRepo,
		outbox:     outboxRepo,
		identity:   identity,
		appBaseURL: appBaseURL,
		log:        log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notifications"
}

// RegisterRoutes mounts the in-app notification routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	handler.New(m.inapp).RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// Register subscribes the module's handlers on the bus.
func (m *Module) Register(bus events.Bus) {
	bus.Subscribe(events.CommissionApproved{}.EventName(), events.HandlerFunc(m.onCommissionApproved))
	bus.Subscribe(events.CommissionPaid{}.EventName(), events.HandlerFunc(m.onCommissionPaid))
	bus.Subscribe(events.CommissionsEligible{}.EventName(), events.HandlerFunc(m.onCommissionsEligible))
}

// Notify writes one in-app notification. It implements the commission
// workflow's Notifier and is also used directly by handlers.
func (m *Module) Notify(ctx context.Context, userID uuid.UUID, title, message, linkURL string) error {
	user, err := m.identity.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	var link *string
	if linkURL != "" {
		link = &linkURL
	}
	_, err = m.inapp.Create(ctx, inapp.CreateParams{
		OrganizationID: user.OrganizationID,
		UserID:         userID,
		Title:          title,
		Content:        message,
		LinkURL:        link,
		Category:       categoryCommission,
	})
	return err
}

func (m *Module) onCommissionApproved(ctx context.Context, event events.Event) error {
	approved, ok := event.(events.CommissionApproved)
	if !ok {
		return nil
	}
	user, err := m.identity.GetUserByID(ctx, approved.UserID)
	if err != nil {
		return err
	}

	resourceType := resourceCommission
	_, err = m.inapp.Create(ctx, inapp.CreateParams{
		OrganizationID: user.OrganizationID,
		UserID:         approved.UserID,
		Title:          "Commission approved",
		Content:        fmt.Sprintf("Your commission of %s was approved.", formatCents(approved.AmountCents)),
		ResourceID:     &approved.CommissionID,
		ResourceType:   &resourceType,
		Category:       categoryCommission,
	})
	if err != nil {
		return err
	}

	_, err = m.outbox.Insert(ctx, outbox.InsertParams{
		OrganizationID: user.OrganizationID,
		Kind:           kindCommissionApprovedEmail,
		Payload: commissionEmailPayload{
			UserID:       approved.UserID,
			CommissionID: approved.CommissionID,
			LeadID:       approved.LeadID,
			AmountCents:  approved.AmountCents,
		},
		RunAt: time.Now(),
	})
	return err
}

func (m *Module) onCommissionPaid(ctx context.Context, event events.Event) error {
	paid, ok := event.(events.CommissionPaid)
	if !ok {
		return nil
	}
	user, err := m.identity.GetUserByID(ctx, paid.UserID)
	if err != nil {
		return err
	}

	resourceType := resourceCommission
	_, err = m.inapp.Create(ctx, inapp.CreateParams{
		OrganizationID: user.OrganizationID,
		UserID:         paid.UserID,
		Title:          "Commission paid",
		Content:        fmt.Sprintf("Your commission of %s was paid.", formatCents(paid.AmountCents)),
		ResourceID:     &paid.CommissionID,
		ResourceType:   &resourceType,
		Category:       categoryCommission,
	})
	if err != nil {
		return err
	}

	var reference string
	if paid.PaymentReference != nil {
		reference = *paid.PaymentReference
	}
	_, err = m.outbox.Insert(ctx, outbox.InsertParams{
		OrganizationID: user.OrganizationID,
		Kind:           kindCommissionPaidEmail,
		Payload: commissionEmailPayload{
			UserID:           paid.UserID,
			CommissionID:     paid.CommissionID,
			LeadID:           paid.LeadID,
			AmountCents:      paid.AmountCents,
			PaymentReference: reference,
		},
		RunAt: time.Now(),
	})
	return err
}

// onCommissionsEligible tells each earner their commission is waiting on
// approval. Approver digests are handled by the scheduler's periodic sweep,
// not here.
func (m *Module) onCommissionsEligible(ctx context.Context, event events.Event) error {
	eligible, ok := event.(events.CommissionsEligible)
	if !ok {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, userID := range eligible.UserIDs {
		g.Go(func() error {
			user, err := m.identity.GetUserByID(gctx, userID)
			if err != nil {
				if m.log != nil {
					m.log.NotificationError("inapp", userID.String(), err)
				}
				return nil
			}
			resourceType := resourceCommission
			var resourceID *uuid.UUID
			if i < len(eligible.CommissionIDs) {
				id := eligible.CommissionIDs[i]
				resourceID = &id
			}
			_, err = m.inapp.Create(gctx, inapp.CreateParams{
				OrganizationID: user.OrganizationID,
				UserID:         userID,
				Title:          "Commission eligible",
				Content:        "Your commission is now eligible and awaiting approval.",
				ResourceID:     resourceID,
				ResourceType:   &resourceType,
				Category:       categoryCommission,
			})
			if err != nil && m.log != nil {
				m.log.NotificationError("inapp", userID.String(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

type commissionEmailPayload struct {
	UserID           uuid.UUID `json:"userId"`
	CommissionID     uuid.UUID `json:"commissionId"`
	LeadID           uuid.UUID `json:"leadId"`
	AmountCents      int64     `json:"amountCents"`
	PaymentReference string    `json:"paymentReference,omitempty"`
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// Deliverer drains the outbox: it resolves a record's recipient and sends the
// email. The scheduler owns the claim/retry loop and calls Deliver per record.
type Deliverer struct {
	identity   *identityservice.Service
	sender     email.Sender
	appBaseURL string
}

func NewDeliverer(identity *identityservice.Service, sender email.Sender, appBaseURL string) *Deliverer {
	return &Deliverer{identity: identity, sender: sender, appBaseURL: appBaseURL}
}

func (d *Deliverer) Deliver(ctx context.Context, record outbox.Record) error {
	var payload commissionEmailPayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return err
	}
	user, err := d.identity.GetUserByID(ctx, payload.UserID)
	if err != nil {
		return err
	}
	amount := formatCents(payload.AmountCents)
	detailURL := fmt.Sprintf("%s/commissions/%s", d.appBaseURL, payload.CommissionID)

	switch record.Kind {
	case kindCommissionApprovedEmail:
		return d.sender.SendCommissionApprovedEmail(ctx, user.Email, user.FirstName, payload.LeadID.String(), amount, detailURL)
	case kindCommissionPaidEmail:
		return d.sender.SendCommissionPaidEmail(ctx, user.Email, user.FirstName, payload.LeadID.String(), amount, payload.PaymentReference)
	case kindCommissionsEligibleEmail:
		return d.sender.SendCommissionsEligibleEmail(ctx, user.Email, user.FirstName, 1, d.appBaseURL+"/commissions")
	default:
		return fmt.Errorf("unknown outbox kind %q", record.Kind)
	}
}
