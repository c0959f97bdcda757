// Package bootstrap assembles the components shared by the server and CLI binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/invoicing/backend/internal/application/recurrence"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/notification"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const meterName = "github.com/invoicing/backend/recurrence"

// LoadConfig reads .env when present and then the layered configuration.
func LoadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return config.Load()
}

// NewLogger builds the process logger from cfg.Log
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// App owns the long-lived infrastructure of one process
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Providers
	Profiler  *telemetry.Profiler
	Database  *persistence.Database
	Invoices  *persistence.GormInvoiceRepository
	Merchants *persistence.GormMerchantRepository
	Location  *time.Location
	Currency  billing.Currency

	// Checkout is nil when no Stripe secret key is configured
	Checkout *billing.StripeCheckoutAdapter
	// Mailer is nil when no SendGrid API key is configured
	Mailer *notification.SendGridSender
}

// New connects telemetry, the database and the provider clients.
// The returned App must be closed by the caller.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	loc, err := cfg.Recurrence.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence timezone: %w", err)
	}
	cur, err := billing.ParseCurrency(cfg.Stripe.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid stripe currency: %w", err)
	}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	log = providers.BridgeLogger(log, logger.ParseLevel(cfg.Log.Level))

	app := &App{
		Config:    cfg,
		Logger:    log,
		Telemetry: providers,
		Location:  loc,
		Currency:  cur,
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
	}, log)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to start profiler: %w", err)
	}
	app.Profiler = profiler
	if cfg.Profiling.SpanProfiles && profiler.IsEnabled() {
		providers.EnableSpanProfiles()
	}

	db, err := persistence.NewDatabase(ctx, &cfg.Database, log, logger.GormLevel(cfg.Log.Level))
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.Database = db
	log.Info("Database connected successfully",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName))

	if providers.IsEnabled() {
		if err := telemetry.InstrumentGorm(db.DB, cfg.Database.DBName); err != nil {
			log.Warn("Failed to instrument database, continuing without query spans", zap.Error(err))
		}
	}

	stores := db.Stores()
	app.Invoices = stores.Invoices
	app.Merchants = stores.Merchants

	if cfg.Stripe.SecretKey != "" {
		checkout, err := billing.NewStripeCheckoutAdapter(billing.NewStripeConfig(cfg), log.Named("stripe"))
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("failed to configure stripe: %w", err)
		}
		app.Checkout = checkout
	} else {
		log.Warn("Stripe secret key not configured, payment links are disabled")
	}

	if cfg.Email.SendGridAPIKey != "" {
		mailer, err := notification.NewSendGridSender(cfg.Email, log.Named("sendgrid"))
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("failed to configure sendgrid: %w", err)
		}
		app.Mailer = mailer
	} else {
		log.Warn("SendGrid API key not configured, invoice emails are disabled")
	}

	return app, nil
}

// RecurrenceService wires the engine with whichever collaborators are configured.
// A non-nil clock overrides the system clock.
func (a *App) RecurrenceService(clock recurrence.Clock) *recurrence.Service {
	svcCfg := recurrence.ServiceConfig{
		Invoices:  a.Invoices,
		Merchants: a.Merchants,
		Clock:     clock,
		Location:  a.Location,
		Logger:    a.Logger.Named("recurrence"),
	}
	if a.Checkout != nil {
		svcCfg.Payments = recurrence.NewPaymentSessionRequester(a.Checkout, a.Invoices, a.Logger.Named("payments"))
	}
	if a.Mailer != nil {
		svcCfg.Notifier = recurrence.NewNotifier(a.Mailer, a.Currency, a.Logger.Named("notifier"))
	}

	metrics, err := telemetry.NewRecurrenceMetrics(a.Telemetry.Meter(meterName))
	if err != nil {
		a.Logger.Warn("Failed to create recurrence metrics", zap.Error(err))
	} else {
		svcCfg.Metrics = metrics
	}

	return recurrence.NewService(svcCfg)
}

// Close releases the database, stops the profiler and flushes telemetry
func (a *App) Close(ctx context.Context) {
	if a.Database != nil {
		if err := a.Database.Close(); err != nil {
			a.Logger.Error("Error closing database", zap.Error(err))
		}
	}
	if a.Profiler != nil {
		if err := a.Profiler.Stop(); err != nil {
			a.Logger.Error("Error stopping profiler", zap.Error(err))
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			a.Logger.Error("Error shutting down telemetry", zap.Error(err))
		}
	}
}
