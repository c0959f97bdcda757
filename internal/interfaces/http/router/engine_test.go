package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	billingapp "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/application/recurrence"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
)

type stubDatabase struct{}

func (stubDatabase) Ping(context.Context) error { return nil }

func (stubDatabase) Stats() (persistence.ConnectionStats, error) {
	return persistence.ConnectionStats{}, nil
}

type stubWebhook struct {
	calls int
}

func (s *stubWebhook) ProcessWebhook(_ context.Context, _ []byte, _ string) (*billingapp.WebhookResult, error) {
	s.calls++
	return &billingapp.WebhookResult{EventID: "evt_1", Processed: true}, nil
}

type stubScheduler struct{}

func (stubScheduler) IsRunning() bool                      { return false }
func (stubScheduler) Entries() []scheduler.ScheduleEntry   { return nil }
func (stubScheduler) LastRun() *scheduler.RunStatus        { return nil }
func (stubScheduler) TriggerNow(ctx context.Context) error { return nil }

type stubReports struct{}

func (stubReports) Today() time.Time                  { return time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC) }
func (stubReports) LastReport() *recurrence.RunReport { return nil }

func TestNewEngine_Routes(t *testing.T) {
	webhook := &stubWebhook{}
	engine := NewEngine(EngineConfig{
		Security:   middleware.DefaultSecurityConfig(),
		Health:     handler.NewHealthHandler(stubDatabase{}),
		Payments:   handler.NewPaymentRedirectHandler(),
		Webhook:    handler.NewStripeWebhookHandler(webhook),
		Recurrence: handler.NewRecurrenceHandler(stubScheduler{}, stubReports{}, false),
	})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/payment-success?session_id=cs_1", http.StatusOK},
		{http.MethodGet, "/payment-cancel", http.StatusOK},
		{http.MethodPost, "/stripe-webhook", http.StatusOK},
		{http.MethodPost, "/webhooks/stripe", http.StatusOK},
		{http.MethodGet, "/api/v1/recurrence/status", http.StatusOK},
		{http.MethodPost, "/api/v1/recurrence/run", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
	assert.Equal(t, 2, webhook.calls)
}

func TestNewEngine_WebhookBodyLimit(t *testing.T) {
	webhook := &stubWebhook{}
	engine := NewEngine(EngineConfig{Webhook: handler.NewStripeWebhookHandler(webhook)})

	req := httptest.NewRequest(http.MethodPost, "/stripe-webhook", strings.NewReader(strings.Repeat("x", MaxWebhookBodySize+1)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, webhook.calls)
}

func TestNewEngine_OptionalHandlers(t *testing.T) {
	engine := NewEngine(EngineConfig{Health: handler.NewHealthHandler(stubDatabase{})})

	for _, path := range []string{"/stripe-webhook", "/api/v1/recurrence/run"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
