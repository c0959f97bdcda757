package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

// MockInvoiceRepository is a mock implementation of invoice.Repository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id int64) (*invoice.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *invoice.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockInvoiceRepository) FindDueRecurring(ctx context.Context, today time.Time) ([]*invoice.Invoice, error) {
	args := m.Called(ctx, today)
	return args.Get(0).([]*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ApplyRecurrence(ctx context.Context, inv *invoice.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockInvoiceRepository) SetPaymentURL(ctx context.Context, id int64, url string) error {
	return m.Called(ctx, id, url).Error(0)
}

func (m *MockInvoiceRepository) MarkGenerated(ctx context.Context, id int64, on time.Time) error {
	return m.Called(ctx, id, on).Error(0)
}

func (m *MockInvoiceRepository) UpdateStatus(ctx context.Context, inv *invoice.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func signedEvent(t *testing.T, eventID, eventType, metadata string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": %q,
  "api_version": "2020-08-27",
  "data": {"object": {"id": "cs_test_1", "object": "checkout.session", "metadata": %s}}
}`, eventID, eventType, metadata))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func dueInvoice(id int64) *invoice.Invoice {
	amount := decimal.RequireFromString("9.99")
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &invoice.Invoice{
		ID:                  id,
		MerchantID:          7,
		CustomerEmail:       "ada@example.com",
		Amount:              amount,
		RecurringAmount:     &amount,
		IssueDate:           start,
		RecurrenceStartDate: &start,
		IsRecurring:         true,
		Frequency:           invoice.FrequencyMonthly,
		Status:              invoice.StatusDue,
	}
}

func createWebhookTestService(repo *MockInvoiceRepository, store shared.IdempotencyStore) *CheckoutWebhookService {
	return NewCheckoutWebhookService(CheckoutWebhookServiceConfig{
		Verifier:          billing.NewWebhookVerifier(testWebhookSecret),
		Invoices:          repo,
		Idempotency:       store,
		IdempotencyConfig: shared.DefaultIdempotencyConfig(),
		Logger:            zap.NewNop(),
	})
}

func TestProcessWebhook_MarksInvoicePaid(t *testing.T) {
	repo := new(MockInvoiceRepository)
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	svc := createWebhookTestService(repo, store)

	inv := dueInvoice(42)
	repo.On("FindByID", mock.Anything, int64(42)).Return(inv, nil).Once()
	repo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(i *invoice.Invoice) bool {
		return i.ID == 42 && i.Status == invoice.StatusPaid && i.IsRecurring
	})).Return(nil).Once()

	payload, sig := signedEvent(t, "evt_1", "checkout.session.completed", `{"invoice_id": "42"}`)
	result, err := svc.ProcessWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.False(t, result.Duplicate)
	assert.Equal(t, int64(42), result.InvoiceID)
	assert.Equal(t, "evt_1", result.EventID)
	assert.Equal(t, invoice.StatusPaid, inv.Status)

	t.Run("redelivery is ignored", func(t *testing.T) {
		result, err := svc.ProcessWebhook(context.Background(), payload, sig)
		require.NoError(t, err)
		assert.True(t, result.Duplicate)
	})

	repo.AssertExpectations(t)
}

func TestProcessWebhook_CanceledInvoiceStaysCanceledRecurrence(t *testing.T) {
	repo := new(MockInvoiceRepository)
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	svc := createWebhookTestService(repo, store)

	inv := dueInvoice(43)
	require.NoError(t, inv.Cancel())
	repo.On("FindByID", mock.Anything, int64(43)).Return(inv, nil).Once()
	repo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(i *invoice.Invoice) bool {
		return i.ID == 43 && i.Status == invoice.StatusPaid && !i.IsRecurring
	})).Return(nil).Once()

	payload, sig := signedEvent(t, "evt_late", "checkout.session.completed", `{"invoice_id": "43"}`)
	result, err := svc.ProcessWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, invoice.StatusPaid, inv.Status)
	assert.False(t, inv.IsRecurring, "a late payment must not restart billing")

	repo.AssertExpectations(t)
}

func TestProcessWebhook_InvalidSignature(t *testing.T) {
	repo := new(MockInvoiceRepository)
	svc := createWebhookTestService(repo, nil)

	payload, _ := signedEvent(t, "evt_1", "checkout.session.completed", `{"invoice_id": "42"}`)
	result, err := svc.ProcessWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, billing.ErrInvalidWebhookSignature)
	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestProcessWebhook_IgnoresOtherEventTypes(t *testing.T) {
	repo := new(MockInvoiceRepository)
	store := new(MockIdempotencyStore)
	svc := createWebhookTestService(repo, store)

	payload, sig := signedEvent(t, "evt_2", "payment_intent.created", `{}`)
	result, err := svc.ProcessWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, "Event type not handled", result.Message)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestProcessWebhook_AcknowledgesUnusableSessions(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		setup    func(repo *MockInvoiceRepository)
		message  string
	}{
		{
			name:     "missing invoice_id",
			metadata: `{}`,
			message:  "Missing invoice_id metadata",
		},
		{
			name:     "malformed invoice_id",
			metadata: `{"invoice_id": "abc"}`,
			message:  "Malformed invoice_id metadata",
		},
		{
			name:     "unknown invoice",
			metadata: `{"invoice_id": "404"}`,
			setup: func(repo *MockInvoiceRepository) {
				repo.On("FindByID", mock.Anything, int64(404)).Return(nil, shared.ErrNotFound)
			},
			message: "Invoice not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockInvoiceRepository)
			if tt.setup != nil {
				tt.setup(repo)
			}
			svc := createWebhookTestService(repo, nil)

			payload, sig := signedEvent(t, "evt_3", "checkout.session.completed", tt.metadata)
			result, err := svc.ProcessWebhook(context.Background(), payload, sig)
			require.NoError(t, err)
			assert.True(t, result.Processed)
			assert.Equal(t, tt.message, result.Message)
			repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
			repo.AssertExpectations(t)
		})
	}
}

func TestProcessWebhook_FailureReleasesEvent(t *testing.T) {
	repo := new(MockInvoiceRepository)
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	svc := createWebhookTestService(repo, store)

	inv := dueInvoice(42)
	repo.On("FindByID", mock.Anything, int64(42)).Return(inv, nil)
	repo.On("UpdateStatus", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	payload, sig := signedEvent(t, "evt_4", "checkout.session.completed", `{"invoice_id": "42"}`)
	result, err := svc.ProcessWebhook(context.Background(), payload, sig)
	require.Error(t, err)
	assert.False(t, result.Processed)
	assert.Contains(t, err.Error(), "connection reset")

	processed, err := store.IsProcessed(context.Background(), "evt_4")
	require.NoError(t, err)
	assert.False(t, processed)

	repo.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil).Once()
	result, err = svc.ProcessWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.False(t, result.Duplicate)
}

func TestProcessWebhook_StoreUnavailableStillProcesses(t *testing.T) {
	repo := new(MockInvoiceRepository)
	store := new(MockIdempotencyStore)
	svc := createWebhookTestService(repo, store)

	store.On("MarkProcessed", mock.Anything, "evt_5", 72*time.Hour).Return(false, errors.New("redis down"))
	repo.On("FindByID", mock.Anything, int64(42)).Return(dueInvoice(42), nil)
	repo.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)

	payload, sig := signedEvent(t, "evt_5", "checkout.session.completed", `{"invoice_id": "42"}`)
	result, err := svc.ProcessWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, "Invoice marked as Paid", result.Message)
	store.AssertExpectations(t)
	repo.AssertExpectations(t)
}
