package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	billingrepo "roofcrm_backend/internal/billing/repository"
	commissionrepo "roofcrm_backend/internal/commissions/repository"
	commissionservice "roofcrm_backend/internal/commissions/service"
	"roofcrm_backend/internal/email"
	identityrepo "roofcrm_backend/internal/identity/repository"
	identityservice "roofcrm_backend/internal/identity/service"
	"roofcrm_backend/internal/notification"
	"roofcrm_backend/internal/scheduler"
	"roofcrm_backend/platform/config"
	"roofcrm_backend/platform/db"
	"roofcrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	identitySvc := identityservice.New(identityrepo.New(pool))
	sender := email.NewSender(cfg)
	deliverer := notification.NewDeliverer(identitySvc, sender, cfg.AppBaseURL)

	// The worker-side ledger reads plans and invoice totals over the pool;
	// recalculation never crosses into another module's transaction here.
	ledger := commissionservice.NewLedger(commissionrepo.New(pool), identitySvc, billingrepo.New(pool), log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewNotificationOutboxDispatcher(client, pool, log)
	go dispatcher.Run(ctx)

	sweepInterval := getDurationEnv("COMMISSION_RECALC_SWEEP_INTERVAL", time.Hour)
	sweep := scheduler.NewCommissionRecalcSweep(client, pool, log, sweepInterval)
	go sweep.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, pool, deliverer, ledger, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
