package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"
)

var (
	// ErrInvalidAmount is returned for non-positive invoice amounts
	ErrInvalidAmount = errors.New("stripe: amount must be positive")
	// ErrMissingDestination is returned when no connected account is given
	ErrMissingDestination = errors.New("stripe: transfer destination is required")
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// StripeCheckoutAdapter creates hosted Checkout Sessions for invoices
type StripeCheckoutAdapter struct {
	config   *StripeConfig
	currency Currency
	logger   *zap.Logger
}

// NewStripeCheckoutAdapter validates the config and initializes the Stripe client.
func NewStripeCheckoutAdapter(config *StripeConfig, logger *zap.Logger) (*StripeCheckoutAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cur, err := ParseCurrency(config.Currency)
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}

	config.InitStripeClient()

	return &StripeCheckoutAdapter{
		config:   config,
		currency: cur,
		logger:   logger,
	}, nil
}

// CreateCheckoutSession creates a payment-mode Checkout Session with a single
// card line item whose funds are transferred to the merchant's account.
func (a *StripeCheckoutAdapter) CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSessionOutput, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if input.Destination == "" {
		return nil, ErrMissingDestination
	}

	invoiceID := formatID(input.InvoiceID)
	unitAmount := a.currency.ToMinorUnits(input.Amount)

	a.logger.Debug("Creating Stripe checkout session",
		zap.Int64("invoice_id", input.InvoiceID),
		zap.Int64("unit_amount", unitAmount),
		zap.String("currency", a.currency.Code()))

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(input.ProductName()),
	}
	if input.MerchantName != "" {
		product.Description = stripe.String("Issued by " + input.MerchantName)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(a.currency.Code()),
					ProductData: product,
					UnitAmount:  stripe.Int64(unitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(a.config.SuccessURL),
		CancelURL:  stripe.String(a.config.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(input.Destination),
			},
			Metadata: map[string]string{"invoice_id": invoiceID},
		},
	}
	params.Context = ctx
	params.AddMetadata("invoice_id", invoiceID)
	params.SetIdempotencyKey(input.IdempotencyKey())

	sess, err := session.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe checkout session",
			zap.Int64("invoice_id", input.InvoiceID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("stripe: checkout session %s has no url", sess.ID)
	}

	a.logger.Info("Created Stripe checkout session",
		zap.Int64("invoice_id", input.InvoiceID),
		zap.String("session_id", sess.ID))

	out := &CheckoutSessionOutput{
		SessionID: sess.ID,
		URL:       sess.URL,
	}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return out, nil
}
