package router

import (
	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// MaxWebhookBodySize bounds Stripe webhook payloads
const MaxWebhookBodySize = 64 << 10

// EngineConfig carries the handlers mounted by NewEngine.
// A nil Webhook or Recurrence handler leaves its routes unmounted.
type EngineConfig struct {
	Logger         *zap.Logger
	Tracing        middleware.TracingConfig
	Security       middleware.SecurityConfig
	TrustedProxies []string

	Health     *handler.HealthHandler
	Payments   *handler.PaymentRedirectHandler
	Webhook    *handler.StripeWebhookHandler
	Recurrence *handler.RecurrenceHandler
}

// NewEngine builds the gin engine with the middleware stack and every route.
//
//	GET  /health
//	GET  /payment-success?session_id=
//	GET  /payment-cancel
//	POST /stripe-webhook, /webhooks/stripe
//	GET  /api/v1/recurrence/status
//	POST /api/v1/recurrence/run
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order: tracing span, panic recovery, request id + access log, span attributes, headers
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.SecureWithConfig(cfg.Security))

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Health)
	}

	if cfg.Payments != nil {
		engine.GET("/payment-success", cfg.Payments.PaymentSuccess)
		engine.GET("/payment-cancel", cfg.Payments.PaymentCancel)
	}

	if cfg.Webhook != nil {
		limit := middleware.BodyLimit(MaxWebhookBodySize)
		engine.POST("/stripe-webhook", limit, cfg.Webhook.HandleStripeWebhook)
		engine.POST("/webhooks/stripe", limit, cfg.Webhook.HandleStripeWebhook)
	}

	var recurrenceArea *Area
	if cfg.Recurrence != nil {
		recurrenceArea = NewArea("/recurrence").
			GET("/status", cfg.Recurrence.Status).
			POST("/run", cfg.Recurrence.Run)
		log.Debug("Recurrence endpoints mounted", zap.Strings("endpoints", recurrenceArea.Endpoints()))
	}
	Mount(engine, recurrenceArea)

	return engine
}
