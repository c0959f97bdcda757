package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/bootstrap"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting invoicing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.Close(context.Background())
	log = app.Logger

	// Apply pending schema migrations
	if err := bootstrap.MigrateUp(ctx, &cfg.Database, log.Named("migrate")); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Recurrence engine and its cron trigger
	recurrenceSvc := app.RecurrenceService(nil)
	recurrenceScheduler, err := scheduler.NewRecurrenceScheduler(scheduler.RecurrenceSchedulerConfig{
		Location:        app.Location,
		MonthlySchedule: cfg.Recurrence.MonthlySchedule,
		YearlySchedule:  cfg.Recurrence.YearlySchedule,
	}, func(ctx context.Context) error {
		_, err := recurrenceSvc.RunNow(ctx)
		return err
	}, log.Named("scheduler"))
	if err != nil {
		log.Fatal("Failed to create recurrence scheduler", zap.Error(err))
	}
	if cfg.Recurrence.Enabled {
		if err := recurrenceScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start recurrence scheduler", zap.Error(err))
		}
	} else {
		log.Info("Recurrence scheduler disabled by configuration")
	}

	// Webhook de-duplication store
	idempotencyStore, err := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	var webhookHandler *handler.StripeWebhookHandler
	if cfg.Stripe.WebhookSecret != "" {
		webhookSvc := billingapp.NewCheckoutWebhookService(billingapp.CheckoutWebhookServiceConfig{
			Verifier:          billing.NewWebhookVerifier(cfg.Stripe.WebhookSecret),
			Invoices:          app.Invoices,
			Idempotency:       idempotencyStore,
			IdempotencyConfig: shared.DefaultIdempotencyConfig(),
			Logger:            log.Named("webhook"),
		})
		webhookHandler = handler.NewStripeWebhookHandler(webhookSvc)
	} else {
		log.Warn("Stripe webhook secret not configured, webhook endpoint is disabled")
	}

	tracing := middleware.DefaultTracingConfig()
	tracing.Enabled = app.Telemetry.IsEnabled()
	tracing.ServiceName = cfg.Telemetry.ServiceName

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.App.Env == "production"

	engine := router.NewEngine(router.EngineConfig{
		Logger:         log,
		Tracing:        tracing,
		Security:       security,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Health:         handler.NewHealthHandler(app.Database),
		Payments:       handler.NewPaymentRedirectHandler(),
		Webhook:        webhookHandler,
		Recurrence: handler.NewRecurrenceHandler(
			recurrenceScheduler, recurrenceSvc, cfg.Recurrence.ManualTriggerEnabled),
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := recurrenceScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Recurrence run interrupted by shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
