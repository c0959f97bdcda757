package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

// MetadataInvoiceID is the Checkout Session metadata key carrying the invoice id
const MetadataInvoiceID = "invoice_id"

// CheckoutWebhookService handles Stripe webhook events for hosted checkout payments
type CheckoutWebhookService struct {
	verifier    *billing.WebhookVerifier
	invoices    invoice.Repository
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	logger      *zap.Logger
}

// CheckoutWebhookServiceConfig contains configuration for CheckoutWebhookService
type CheckoutWebhookServiceConfig struct {
	Verifier          *billing.WebhookVerifier
	Invoices          invoice.Repository
	Idempotency       shared.IdempotencyStore
	IdempotencyConfig shared.IdempotencyConfig
	Logger            *zap.Logger
}

// NewCheckoutWebhookService creates a new CheckoutWebhookService.
// A nil Idempotency store disables duplicate suppression.
func NewCheckoutWebhookService(cfg CheckoutWebhookServiceConfig) *CheckoutWebhookService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idemConfig := cfg.IdempotencyConfig
	if idemConfig.TTL <= 0 {
		idemConfig = shared.DefaultIdempotencyConfig()
	}
	return &CheckoutWebhookService{
		verifier:    cfg.Verifier,
		invoices:    cfg.Invoices,
		idempotency: cfg.Idempotency,
		idemConfig:  idemConfig,
		logger:      logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	InvoiceID int64  `json:"invoice_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and handles one Stripe webhook delivery.
// Signature failures wrap billing.ErrInvalidWebhookSignature. A returned error
// other than that means the event should be retried by Stripe.
func (s *CheckoutWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.verifier.ConstructEvent(payload, signature)
	if err != nil {
		s.logger.Warn("Failed to verify webhook signature", zap.Error(err))
		return nil, err
	}

	log := s.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
	log.Info("Processing Stripe webhook event")

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	if event.Type != billing.EventCheckoutSessionCompleted {
		log.Debug("Unhandled webhook event type")
		result.Message = "Event type not handled"
		return result, nil
	}

	if s.claim(ctx, log, event.ID) {
		result.Duplicate = true
		result.Message = "Event already processed"
		log.Info("Duplicate webhook event ignored")
		return result, nil
	}

	if err := s.handleCheckoutCompleted(ctx, log, event, result); err != nil {
		s.release(ctx, log, event.ID)
		log.Error("Failed to process webhook event", zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}
	return result, nil
}

// claim reports whether the event was already handled. Store failures are
// logged and treated as a first delivery.
func (s *CheckoutWebhookService) claim(ctx context.Context, log *zap.Logger, eventID string) bool {
	if s.idempotency == nil || !s.idemConfig.Enabled {
		return false
	}
	first, err := s.idempotency.MarkProcessed(ctx, eventID, s.idemConfig.TTL)
	if err != nil {
		log.Warn("Idempotency store unavailable, processing event anyway", zap.Error(err))
		return false
	}
	return !first
}

func (s *CheckoutWebhookService) release(ctx context.Context, log *zap.Logger, eventID string) {
	if s.idempotency == nil || !s.idemConfig.Enabled {
		return
	}
	if err := s.idempotency.Release(ctx, eventID); err != nil {
		log.Warn("Failed to release webhook event", zap.Error(err))
	}
}

// handleCheckoutCompleted marks the invoice named in the session metadata as Paid.
// Missing metadata and unknown invoices are acknowledged so Stripe stops retrying.
func (s *CheckoutWebhookService) handleCheckoutCompleted(ctx context.Context, log *zap.Logger, event stripe.Event, result *WebhookResult) error {
	sess, err := billing.DecodeCheckoutSession(event)
	if err != nil {
		return err
	}
	log = log.With(zap.String("session_id", sess.ID))

	raw := sess.Metadata[MetadataInvoiceID]
	if raw == "" {
		log.Warn("Checkout session has no invoice_id metadata, cannot update")
		result.Message = "Missing invoice_id metadata"
		return nil
	}
	invoiceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || invoiceID <= 0 {
		log.Warn("Checkout session has a malformed invoice_id", zap.String("invoice_id", raw))
		result.Message = "Malformed invoice_id metadata"
		return nil
	}
	result.InvoiceID = invoiceID
	log = log.With(zap.Int64("invoice_id", invoiceID))

	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Warn("Invoice not found for checkout session")
			result.Message = "Invoice not found"
			return nil
		}
		return fmt.Errorf("failed to find invoice %d: %w", invoiceID, err)
	}

	if err := inv.MarkPaid(); err != nil {
		return fmt.Errorf("failed to mark invoice %d paid: %w", invoiceID, err)
	}
	if err := s.invoices.UpdateStatus(ctx, inv); err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}

	log.Info("Invoice marked as Paid")
	result.Message = "Invoice marked as Paid"
	return nil
}
