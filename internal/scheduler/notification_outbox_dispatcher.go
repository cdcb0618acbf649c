package scheduler

import (
	"context"
	"time"

	"roofcrm_backend/internal/notification/outbox"
	"roofcrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxClaimBatchSize = 50

// NotificationOutboxDispatcher polls the outbox for due records and hands each
// one to the worker queue. Claimed records that fail to enqueue are put back
// with their error so the next poll retries them.
type NotificationOutboxDispatcher struct {
	client *Client
	repo   *outbox.Repository
	log    *logger.Logger
}

func NewNotificationOutboxDispatcher(client *Client, pool *pgxpool.Pool, log *logger.Logger) *NotificationOutboxDispatcher {
	return &NotificationOutboxDispatcher{
		client: client,
		repo:   outbox.New(pool),
		log:    log,
	}
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := d.repo.ClaimDue(ctx, outboxClaimBatchSize)
		if err != nil {
			d.log.Warn("outbox claim failed", "error", err)
			continue
		}

		for _, rec := range records {
			err := d.client.EnqueueNotificationOutboxDue(ctx, rec.ID, rec.OrganizationID)
			if err != nil {
				_ = d.repo.MarkFailed(ctx, rec.ID, rec.Attempts, err.Error())
			}
		}
	}
}
