package scheduler

import (
	"context"
	"fmt"

	commissionservice "roofcrm_backend/internal/commissions/service"
	"roofcrm_backend/internal/notification"
	"roofcrm_backend/internal/notification/outbox"
	"roofcrm_backend/platform/apperr"
	"roofcrm_backend/platform/config"
	"roofcrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	outbox    *outbox.Repository
	deliverer *notification.Deliverer
	ledger    *commissionservice.Ledger
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, deliverer *notification.Deliverer, ledger *commissionservice.Ledger, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		outbox:    outbox.New(pool),
		deliverer: deliverer,
		ledger:    ledger,
		log:       log,
	}

	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	mux.HandleFunc(TaskCommissionRecalc, w.handleCommissionRecalc)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	record, err := w.outbox.GetByID(ctx, outboxID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	if record.Status != outbox.StatusProcessing {
		return nil
	}

	if err := w.deliverer.Deliver(ctx, record); err != nil {
		w.log.Warn("outbox delivery failed", "outboxId", record.ID, "kind", record.Kind, "error", err)
		return w.outbox.MarkFailed(ctx, record.ID, record.Attempts, err.Error())
	}

	return w.outbox.MarkSucceeded(ctx, record.ID)
}

func (w *Worker) handleCommissionRecalc(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCommissionRecalcPayload(task)
	if err != nil {
		return err
	}

	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	updated, err := w.ledger.Recalculate(ctx, orgID, leadID)
	if err != nil {
		return err
	}

	if updated > 0 {
		w.log.Info("commission recalc updated rows", "leadId", leadID, "updated", updated)
	}
	return nil
}
