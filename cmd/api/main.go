package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roofcrm_backend/internal/billing"
	"roofcrm_backend/internal/billing/dedupe"
	billingrepo "roofcrm_backend/internal/billing/repository"
	"roofcrm_backend/internal/commissions"
	"roofcrm_backend/internal/events"
	apphttp "roofcrm_backend/internal/http"
	"roofcrm_backend/internal/http/router"
	identityrepo "roofcrm_backend/internal/identity/repository"
	identityservice "roofcrm_backend/internal/identity/service"
	"roofcrm_backend/internal/leads"
	"roofcrm_backend/internal/notification"
	"roofcrm_backend/internal/notification/inapp"
	"roofcrm_backend/internal/notification/outbox"
	"roofcrm_backend/platform/config"
	"roofcrm_backend/platform/db"
	"roofcrm_backend/platform/logger"
	"roofcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Redis-backed dedupe store so a retried payment event applies once
	if cfg.RedisURL == "" {
		panic("REDIS_URL is required")
	}
	dedupeStore, err := dedupe.New(cfg)
	if err != nil {
		log.Error("failed to initialize payment dedupe store", "error", err)
		panic("failed to initialize payment dedupe store: " + err.Error())
	}
	defer func() { _ = dedupeStore.Close() }()

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	identitySvc := identityservice.New(identityrepo.New(pool))

	// Notification module subscribes to domain events and doubles as the
	// commission workflow's notifier
	notificationModule := notification.NewModule(inapp.NewRepository(pool), outbox.New(pool), identitySvc, cfg.AppBaseURL, log)
	notificationModule.Register(eventBus)

	leadsModule := leads.NewModule(pool, identitySvc, eventBus, val, log)

	// The invoice repository doubles as the commission ledger's invoice source
	invoiceRepo := billingrepo.New(pool)

	commissionsModule := commissions.NewModule(pool, identitySvc, invoiceRepo, notificationModule,
		eventBus, cfg.AppBaseURL, val, log)

	billingModule := billing.NewModule(pool, invoiceRepo, leadsModule.Repository(), commissionsModule.Repository(),
		leadsModule.Service(), commissionsModule.Ledger(), dedupeStore, eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			commissionsModule,
			billingModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
