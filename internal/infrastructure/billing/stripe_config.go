package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stripe/stripe-go/v81"
)

// CheckoutSessionPlaceholder is replaced by Stripe with the session ID on redirect.
const CheckoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// StripeConfig holds configuration for Stripe Checkout and webhooks
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret verifies webhook signatures (whsec_xxx)
	WebhookSecret string

	// IsTestMode indicates if using Stripe test mode
	IsTestMode bool

	// Currency is the ISO currency code used for checkout line items
	Currency string

	// SuccessURL and CancelURL are the Checkout redirect targets
	SuccessURL string
	CancelURL  string
}

// NewStripeConfig derives the Stripe settings from application config.
func NewStripeConfig(cfg *config.Config) *StripeConfig {
	base := strings.TrimRight(cfg.App.PublicURL, "/")
	return &StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		IsTestMode:    cfg.Stripe.IsTestMode,
		Currency:      strings.ToLower(cfg.Stripe.Currency),
		SuccessURL:    base + "/payment-success?session_id=" + CheckoutSessionPlaceholder,
		CancelURL:     base + "/payment-cancel",
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return errors.New("stripe: secret key is required")
	}

	if c.IsTestMode {
		if !strings.HasPrefix(c.SecretKey, "sk_test") && !strings.HasPrefix(c.SecretKey, "rk_test") {
			return errors.New("stripe: test mode enabled but secret key is not a test key")
		}
	} else if !strings.HasPrefix(c.SecretKey, "sk_live") && !strings.HasPrefix(c.SecretKey, "rk_live") {
		return errors.New("stripe: live mode enabled but secret key is not a live key")
	}

	if _, err := ParseCurrency(c.Currency); err != nil {
		return fmt.Errorf("stripe: %w", err)
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return errors.New("stripe: success and cancel URLs are required")
	}
	return nil
}

// InitStripeClient initializes the Stripe client with the configured API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
