package scheduler

import (
	"context"
	"time"

	"roofcrm_backend/internal/commissions/repository"
	"roofcrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultRecalcSweepInterval = time.Hour
	recalcSweepBatchSize       = 200
)

// CommissionRecalcSweep periodically enqueues a recalculation task for every
// lead that still carries open commissions, so rows drift back in line after
// plan edits or invoice corrections that bypassed the usual triggers.
type CommissionRecalcSweep struct {
	client   *Client
	repo     *repository.Repository
	log      *logger.Logger
	interval time.Duration
}

func NewCommissionRecalcSweep(client *Client, pool *pgxpool.Pool, log *logger.Logger, interval time.Duration) *CommissionRecalcSweep {
	if interval <= 0 {
		interval = defaultRecalcSweepInterval
	}

	return &CommissionRecalcSweep{
		client:   client,
		repo:     repository.New(pool),
		log:      log,
		interval: interval,
	}
}

func (s *CommissionRecalcSweep) Run(ctx context.Context) {
	if s == nil || s.client == nil || s.repo == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CommissionRecalcSweep) sweep(ctx context.Context) {
	refs, err := s.repo.ListLeadsWithOpenCommissions(ctx, recalcSweepBatchSize)
	if err != nil {
		s.log.Warn("commission recalc sweep failed", "error", err)
		return
	}

	enqueued := 0
	for _, ref := range refs {
		if err := s.client.EnqueueCommissionRecalc(ctx, ref.OrganizationID, ref.LeadID); err != nil {
			s.log.Warn("commission recalc enqueue failed", "error", err, "leadId", ref.LeadID)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.log.Info("commission recalc sweep enqueued leads", "count", enqueued)
	}
}
