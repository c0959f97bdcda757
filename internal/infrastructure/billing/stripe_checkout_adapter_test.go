package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/form"
	"go.uber.org/zap"
)

// mockBackend implements stripe.Backend for testing
type mockBackend struct {
	handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)
}

func (m *mockBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	data, err := m.handler(method, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (m *mockBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) SetMaxNetworkRetries(maxNetworkRetries int64) {}

func testConfig() *StripeConfig {
	return &StripeConfig{
		SecretKey:     "sk_test_123456789",
		WebhookSecret: "whsec_test",
		IsTestMode:    true,
		Currency:      "eur",
		SuccessURL:    "https://billing.example.com/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://billing.example.com/payment-cancel",
	}
}

func setupMockBackend(t *testing.T, handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)) {
	t.Helper()
	stripe.SetBackend(stripe.APIBackend, &mockBackend{handler: handler})
	t.Cleanup(func() {
		stripe.SetBackend(stripe.APIBackend, nil)
	})
}

func testInput() CheckoutSessionInput {
	return CheckoutSessionInput{
		InvoiceID:    42,
		IssueDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString("150.00"),
		CustomerName: "Ada Lovelace",
		MerchantName: "Acme Ltd",
		Destination:  "acct_123",
	}
}

func TestCurrency_ToMinorUnits(t *testing.T) {
	tests := []struct {
		currency string
		amount   string
		want     int64
	}{
		{"eur", "150", 15000},
		{"eur", "150.00", 15000},
		{"eur", "19.99", 1999},
		{"eur", "0.015", 2},
		{"eur", "10.004", 1000},
		{"usd", "0.01", 1},
		{"jpy", "1000", 1000},
		{"jpy", "999.5", 1000},
		{"kwd", "1.234", 1234},
	}
	for _, tt := range tests {
		t.Run(tt.currency+" "+tt.amount, func(t *testing.T) {
			cur, err := ParseCurrency(tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cur.ToMinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestCurrency_Format(t *testing.T) {
	eur, err := ParseCurrency("EUR")
	require.NoError(t, err)
	assert.Equal(t, "eur", eur.Code())
	assert.Equal(t, int32(2), eur.Scale())
	assert.Equal(t, "€9.99", eur.Format(decimal.RequireFromString("9.99")))
	assert.Equal(t, "€10.00", eur.Format(decimal.NewFromInt(10)))

	jpy, err := ParseCurrency("jpy")
	require.NoError(t, err)
	assert.Equal(t, int32(0), jpy.Scale())
	formatted := jpy.Format(decimal.NewFromInt(1000))
	assert.True(t, strings.HasSuffix(formatted, "1000"), formatted)
	assert.NotContains(t, formatted, ".")
}

func TestParseCurrency_Unknown(t *testing.T) {
	_, err := ParseCurrency("zzq")
	assert.ErrorContains(t, err, "invalid currency")
}

func TestCheckoutSessionInput_Naming(t *testing.T) {
	in := testInput()
	assert.Equal(t, "Invoice #42 for Ada Lovelace", in.ProductName())
	assert.Equal(t, "invoice-42-2025-06-01", in.IdempotencyKey())
}

func TestNewStripeCheckoutAdapter_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SecretKey = ""

	adapter, err := NewStripeCheckoutAdapter(cfg, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, adapter)
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	var capturedPath, capturedMethod string

	setupMockBackend(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		capturedMethod = method
		capturedPath = path
		captured = params.(*stripe.CheckoutSessionParams)
		return json.Marshal(map[string]any{
			"id":         "cs_test_1",
			"object":     "checkout.session",
			"url":        "https://checkout.stripe.com/c/pay/cs_test_1",
			"expires_at": 1748822400,
		})
	})

	adapter, err := NewStripeCheckoutAdapter(testConfig(), zap.NewNop())
	require.NoError(t, err)

	out, err := adapter.CreateCheckoutSession(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", out.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", out.URL)
	assert.Equal(t, time.Unix(1748822400, 0).UTC(), out.ExpiresAt)

	assert.Equal(t, http.MethodPost, capturedMethod)
	assert.Equal(t, "/v1/checkout/sessions", capturedPath)
	require.NotNil(t, captured)
	assert.Equal(t, "payment", *captured.Mode)
	assert.Equal(t, []*string{stripe.String("card")}, captured.PaymentMethodTypes)
	require.Len(t, captured.LineItems, 1)

	item := captured.LineItems[0]
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "eur", *item.PriceData.Currency)
	assert.Equal(t, int64(15000), *item.PriceData.UnitAmount)
	assert.Equal(t, "Invoice #42 for Ada Lovelace", *item.PriceData.ProductData.Name)
	assert.Equal(t, "Issued by Acme Ltd", *item.PriceData.ProductData.Description)

	assert.Equal(t, "https://billing.example.com/payment-success?session_id={CHECKOUT_SESSION_ID}", *captured.SuccessURL)
	assert.Equal(t, "https://billing.example.com/payment-cancel", *captured.CancelURL)
	assert.Equal(t, "acct_123", *captured.PaymentIntentData.TransferData.Destination)
	assert.Equal(t, "42", captured.Metadata["invoice_id"])
	assert.Equal(t, "invoice-42-2025-06-01", *captured.IdempotencyKey)
}

func TestCreateCheckoutSession_ZeroDecimalCurrency(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	setupMockBackend(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		captured = params.(*stripe.CheckoutSessionParams)
		return json.Marshal(map[string]any{
			"id":     "cs_test_jpy",
			"object": "checkout.session",
			"url":    "https://checkout.stripe.com/c/pay/cs_test_jpy",
		})
	})

	cfg := testConfig()
	cfg.Currency = "JPY"
	adapter, err := NewStripeCheckoutAdapter(cfg, zap.NewNop())
	require.NoError(t, err)

	in := testInput()
	in.Amount = decimal.NewFromInt(1000)
	_, err = adapter.CreateCheckoutSession(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, captured)
	item := captured.LineItems[0]
	assert.Equal(t, "jpy", *item.PriceData.Currency)
	assert.Equal(t, int64(1000), *item.PriceData.UnitAmount)
}

func TestCreateCheckoutSession_StripeError(t *testing.T) {
	setupMockBackend(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return nil, &stripe.Error{
			HTTPStatusCode: http.StatusBadRequest,
			Type:           stripe.ErrorTypeInvalidRequest,
			Msg:            "No such destination: 'acct_123'",
		}
	})

	adapter, err := NewStripeCheckoutAdapter(testConfig(), zap.NewNop())
	require.NoError(t, err)

	out, err := adapter.CreateCheckoutSession(context.Background(), testInput())
	require.Error(t, err)
	assert.Nil(t, out)

	var stripeErr *stripe.Error
	assert.True(t, errors.As(err, &stripeErr))
	assert.Contains(t, err.Error(), "failed to create checkout session")
}

func TestCreateCheckoutSession_MissingURL(t *testing.T) {
	setupMockBackend(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return []byte(`{"id":"cs_test_2","object":"checkout.session"}`), nil
	})

	adapter, err := NewStripeCheckoutAdapter(testConfig(), zap.NewNop())
	require.NoError(t, err)

	_, err = adapter.CreateCheckoutSession(context.Background(), testInput())
	assert.ErrorContains(t, err, "has no url")
}

func TestCreateCheckoutSession_RejectsBadInput(t *testing.T) {
	called := false
	setupMockBackend(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		called = true
		return nil, nil
	})

	adapter, err := NewStripeCheckoutAdapter(testConfig(), zap.NewNop())
	require.NoError(t, err)

	zero := testInput()
	zero.Amount = decimal.Zero
	_, err = adapter.CreateCheckoutSession(context.Background(), zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	noDest := testInput()
	noDest.Destination = ""
	_, err = adapter.CreateCheckoutSession(context.Background(), noDest)
	assert.ErrorIs(t, err, ErrMissingDestination)

	assert.False(t, called)
}
