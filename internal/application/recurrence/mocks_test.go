package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/merchant"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/invoicing/backend/internal/infrastructure/notification"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testCurrency(t *testing.T, code string) billing.Currency {
	t.Helper()
	cur, err := billing.ParseCurrency(code)
	require.NoError(t, err)
	return cur
}

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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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

// MockMerchantRepository is a mock implementation of merchant.Repository
type MockMerchantRepository struct {
	mock.Mock
}

func (m *MockMerchantRepository) FindByID(ctx context.Context, id int64) (*merchant.Merchant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*merchant.Merchant), args.Error(1)
}

func (m *MockMerchantRepository) Save(ctx context.Context, mr *merchant.Merchant) error {
	return m.Called(ctx, mr).Error(0)
}

// MockCheckoutSessionCreator is a mock implementation of CheckoutSessionCreator
type MockCheckoutSessionCreator struct {
	mock.Mock
}

func (m *MockCheckoutSessionCreator) CreateCheckoutSession(ctx context.Context, input billing.CheckoutSessionInput) (*billing.CheckoutSessionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSessionOutput), args.Error(1)
}

// MockEmailSender is a mock implementation of EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, email notification.Email) error {
	return m.Called(ctx, email).Error(0)
}
