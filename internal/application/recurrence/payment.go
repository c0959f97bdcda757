package recurrence

import (
	"context"
	"fmt"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/merchant"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckoutSessionCreator creates hosted payment sessions
type CheckoutSessionCreator interface {
	CreateCheckoutSession(ctx context.Context, input billing.CheckoutSessionInput) (*billing.CheckoutSessionOutput, error)
}

// PaymentSessionRequester obtains a payable link for a freshly advanced
// invoice and commits it on the invoice.
type PaymentSessionRequester struct {
	creator  CheckoutSessionCreator
	invoices invoice.Repository
	logger   *zap.Logger
}

// NewPaymentSessionRequester creates a requester
func NewPaymentSessionRequester(creator CheckoutSessionCreator, invoices invoice.Repository, logger *zap.Logger) *PaymentSessionRequester {
	return &PaymentSessionRequester{
		creator:  creator,
		invoices: invoices,
		logger:   logger,
	}
}

// Request never returns an error: a merchant without a payout destination
// yields a skipped step and any provider or commit failure a failed one,
// leaving the invoice without a payment URL.
func (r *PaymentSessionRequester) Request(ctx context.Context, inv *invoice.Invoice, m *merchant.Merchant) StepResult {
	log := logger.Enrich(ctx, r.logger).With(zap.Int64("invoice_id", inv.ID), zap.Int64("merchant_id", m.ID))

	if !m.HasPayoutDestination() {
		log.Info("Merchant has no payout destination, skipping payment session")
		return skipped("merchant has no payout destination")
	}

	ctx, span := telemetry.StartSpan(ctx, "recurrence.payment_session",
		attribute.Int64("invoice.id", inv.ID),
		attribute.Int64("merchant.id", m.ID))
	defer span.End()

	out, err := r.creator.CreateCheckoutSession(ctx, billing.CheckoutSessionInput{
		InvoiceID:    inv.ID,
		IssueDate:    inv.IssueDate,
		Amount:       inv.Amount,
		CustomerName: inv.CustomerName(),
		MerchantName: m.CompanyName,
		Destination:  m.PayoutDestination,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to create payment session", zap.Error(err))
		return failed(err)
	}

	if err := r.invoices.SetPaymentURL(ctx, inv.ID, out.URL); err != nil {
		err = fmt.Errorf("store payment url: %w", err)
		telemetry.RecordError(span, err)
		log.Error("Failed to store payment URL", zap.String("session_id", out.SessionID), zap.Error(err))
		return failed(err)
	}
	inv.AttachPaymentURL(out.URL)

	telemetry.SetOK(span)
	log.Info("Payment session created", zap.String("session_id", out.SessionID))
	return succeeded(out.SessionID)
}
