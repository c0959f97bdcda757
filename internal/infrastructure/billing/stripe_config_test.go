package billing

import (
	"testing"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
)

func TestNewStripeConfig(t *testing.T) {
	cfg := &config.Config{
		App: config.AppConfig{PublicURL: "https://billing.example.com/"},
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_abc",
			WebhookSecret: "whsec_abc",
			Currency:      "EUR",
			IsTestMode:    true,
		},
	}

	sc := NewStripeConfig(cfg)

	assert.Equal(t, "eur", sc.Currency)
	assert.Equal(t, "https://billing.example.com/payment-success?session_id={CHECKOUT_SESSION_ID}", sc.SuccessURL)
	assert.Equal(t, "https://billing.example.com/payment-cancel", sc.CancelURL)
	assert.Equal(t, "whsec_abc", sc.WebhookSecret)
	assert.NoError(t, sc.Validate())
}

func TestStripeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *StripeConfig)
		wantErr string
	}{
		{"valid", func(c *StripeConfig) {}, ""},
		{"missing key", func(c *StripeConfig) { c.SecretKey = "" }, "secret key is required"},
		{"live key in test mode", func(c *StripeConfig) { c.SecretKey = "sk_live_abc" }, "not a test key"},
		{"test key in live mode", func(c *StripeConfig) { c.IsTestMode = false }, "not a live key"},
		{"bad currency", func(c *StripeConfig) { c.Currency = "euro" }, "invalid currency"},
		{"unknown currency", func(c *StripeConfig) { c.Currency = "zzq" }, "invalid currency"},
		{"missing urls", func(c *StripeConfig) { c.CancelURL = "" }, "success and cancel URLs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
