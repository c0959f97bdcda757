package recurrence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/merchant"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/invoicing/backend/internal/infrastructure/notification"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubCheckout struct {
	mu     sync.Mutex
	err    error
	inputs []billing.CheckoutSessionInput
}

func (s *stubCheckout) CreateCheckoutSession(_ context.Context, in billing.CheckoutSessionInput) (*billing.CheckoutSessionOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, s.err
	}
	id := fmt.Sprintf("cs_test_%d_%s", in.InvoiceID, in.IssueDate.Format("20060102"))
	return &billing.CheckoutSessionOutput{SessionID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

type stubSender struct {
	mu     sync.Mutex
	failTo map[string]bool
	sent   []notification.Email
}

func (s *stubSender) Send(_ context.Context, email notification.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo[email.To] {
		return &notification.SendError{StatusCode: 500, Body: "upstream down"}
	}
	s.sent = append(s.sent, email)
	return nil
}

type integration struct {
	db        *gorm.DB
	invoices  *persistence.GormInvoiceRepository
	merchants *persistence.GormMerchantRepository
	checkout  *stubCheckout
	sender    *stubSender
	service   *Service
}

func newIntegration(t *testing.T) *integration {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	it := &integration{
		db:        db,
		invoices:  persistence.NewGormInvoiceRepository(db),
		merchants: persistence.NewGormMerchantRepository(db),
		checkout:  &stubCheckout{},
		sender:    &stubSender{failTo: map[string]bool{}},
	}
	log := zap.NewNop()
	it.service = NewService(ServiceConfig{
		Invoices:  it.invoices,
		Merchants: it.merchants,
		Payments:  NewPaymentSessionRequester(it.checkout, it.invoices, log),
		Notifier:  NewNotifier(it.sender, testCurrency(t, "eur"), log),
		Logger:    log,
	})
	return it
}

func (it *integration) seedMerchant(t *testing.T, name, account string) *merchant.Merchant {
	t.Helper()
	m, err := merchant.NewMerchant(name, "billing@"+name+".test")
	require.NoError(t, err)
	if account != "" {
		m.ConnectPayoutDestination(account)
	}
	require.NoError(t, it.merchants.Save(context.Background(), m))
	return m
}

func (it *integration) seedInvoice(t *testing.T, merchantID int64, email string, freq invoice.Frequency, start time.Time) *invoice.Invoice {
	t.Helper()
	inv, err := invoice.NewRecurringInvoice(
		merchantID,
		invoice.Customer{FirstName: "Ada", LastName: "Lovelace", Email: email},
		decimal.RequireFromString("12.50"),
		day(2025, 5, 1),
		invoice.FrequencyMonthly,
		decimal.RequireFromString("9.99"),
		start,
	)
	require.NoError(t, err)
	inv.Frequency = freq
	require.NoError(t, it.invoices.Save(context.Background(), inv))
	return inv
}

func (it *integration) reload(t *testing.T, id int64) *invoice.Invoice {
	t.Helper()
	inv, err := it.invoices.FindByID(context.Background(), id)
	require.NoError(t, err)
	return inv
}

func TestIntegration_MonthlyLifecycle(t *testing.T) {
	it := newIntegration(t)
	ctx := context.Background()
	m := it.seedMerchant(t, "acme", "acct_123")
	seeded := it.seedInvoice(t, m.ID, "ada@example.com", invoice.FrequencyMonthly, day(2025, 6, 1))
	require.NoError(t, seeded.MarkPaid())
	require.NoError(t, it.invoices.UpdateStatus(ctx, seeded))

	report, err := it.service.Run(ctx, day(2025, 6, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomeGenerated, report.Outcomes[0].Status)

	inv := it.reload(t, seeded.ID)
	assert.Equal(t, invoice.StatusDue, inv.Status)
	assert.True(t, inv.Amount.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, day(2025, 6, 1), inv.IssueDate)
	require.NotNil(t, inv.LastGeneratedOn)
	assert.Equal(t, day(2025, 6, 5), *inv.LastGeneratedOn)
	require.NotNil(t, inv.PaymentURL)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1_20250601", *inv.PaymentURL)

	require.Len(t, it.checkout.inputs, 1)
	assert.Equal(t, "acct_123", it.checkout.inputs[0].Destination)
	assert.Equal(t, int64(999), testCurrency(t, "eur").ToMinorUnits(it.checkout.inputs[0].Amount))
	require.Len(t, it.sender.sent, 1)
	assert.Equal(t, "Your Recurring Invoice #1 from acme", it.sender.sent[0].Subject)
	assert.Contains(t, it.sender.sent[0].HTML, *inv.PaymentURL)

	t.Run("rerun on the same day selects nothing", func(t *testing.T) {
		report, err := it.service.Run(ctx, day(2025, 6, 5))
		require.NoError(t, err)
		assert.Zero(t, report.Candidates)
		assert.Len(t, it.checkout.inputs, 1)
		assert.Len(t, it.sender.sent, 1)
	})

	t.Run("later day in the same period is skipped", func(t *testing.T) {
		report, err := it.service.Run(ctx, day(2025, 6, 20))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Candidates)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, OutcomeSkippedAlreadyGenerated, report.Outcomes[0].Status)

		after := it.reload(t, seeded.ID)
		assert.Equal(t, day(2025, 6, 5), *after.LastGeneratedOn)
		assert.Equal(t, day(2025, 6, 1), after.IssueDate)
		assert.Len(t, it.sender.sent, 1)
	})

	t.Run("next period generates again", func(t *testing.T) {
		report, err := it.service.Run(ctx, day(2025, 7, 1))
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, OutcomeGenerated, report.Outcomes[0].Status)

		after := it.reload(t, seeded.ID)
		assert.Equal(t, day(2025, 7, 1), after.IssueDate)
		assert.Equal(t, day(2025, 7, 1), *after.LastGeneratedOn)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1_20250701", *after.PaymentURL)
		assert.Len(t, it.sender.sent, 2)
	})
}

func TestIntegration_ProviderFailureLeavesInvoiceWithoutURL(t *testing.T) {
	it := newIntegration(t)
	ctx := context.Background()
	m := it.seedMerchant(t, "acme", "acct_123")
	seeded := it.seedInvoice(t, m.ID, "ada@example.com", invoice.FrequencyMonthly, day(2025, 6, 1))
	it.checkout.err = errors.New("stripe unavailable")

	report, err := it.service.Run(ctx, day(2025, 6, 5))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, OutcomeGenerated, out.Status)
	assert.Equal(t, StepFailed, out.Payment.Status)
	assert.Equal(t, StepSucceeded, out.Notification.Status)

	inv := it.reload(t, seeded.ID)
	assert.Equal(t, invoice.StatusDue, inv.Status)
	assert.Nil(t, inv.PaymentURL)
	require.NotNil(t, inv.LastGeneratedOn)
	assert.Equal(t, day(2025, 6, 5), *inv.LastGeneratedOn)

	require.Len(t, it.sender.sent, 1)
	assert.Contains(t, it.sender.sent[0].HTML, FallbackPaymentMessage)
}

func TestIntegration_NotifierFailureDoesNotBlockBatch(t *testing.T) {
	it := newIntegration(t)
	ctx := context.Background()
	m := it.seedMerchant(t, "acme", "acct_123")
	first := it.seedInvoice(t, m.ID, "broken@example.com", invoice.FrequencyMonthly, day(2025, 6, 1))
	second := it.seedInvoice(t, m.ID, "ada@example.com", invoice.FrequencyMonthly, day(2025, 6, 1))
	it.sender.failTo["broken@example.com"] = true

	report, err := it.service.Run(ctx, day(2025, 6, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Counts().Generated)

	out := requireOutcome(t, report, first.ID)
	assert.Equal(t, StepFailed, out.Notification.Status)

	for _, id := range []int64{first.ID, second.ID} {
		inv := it.reload(t, id)
		require.NotNil(t, inv.LastGeneratedOn, "invoice %d", id)
		assert.Equal(t, day(2025, 6, 5), *inv.LastGeneratedOn)
		assert.NotNil(t, inv.PaymentURL)
	}
	require.Len(t, it.sender.sent, 1)
	assert.Equal(t, "ada@example.com", it.sender.sent[0].To)
}

func TestIntegration_UnknownFrequencyAndMissingDestination(t *testing.T) {
	it := newIntegration(t)
	ctx := context.Background()
	connected := it.seedMerchant(t, "acme", "acct_123")
	unconnected := it.seedMerchant(t, "solo", "")
	weekly := it.seedInvoice(t, connected.ID, "weekly@example.com", invoice.Frequency("weekly"), day(2025, 6, 1))
	noPayout := it.seedInvoice(t, unconnected.ID, "ada@example.com", invoice.FrequencyMonthly, day(2025, 6, 1))

	report, err := it.service.Run(ctx, day(2025, 6, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)

	weeklyOut := requireOutcome(t, report, weekly.ID)
	assert.Equal(t, OutcomeSkippedUnknownFrequency, weeklyOut.Status)
	untouched := it.reload(t, weekly.ID)
	assert.Nil(t, untouched.LastGeneratedOn)
	assert.True(t, untouched.Amount.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, day(2025, 5, 1), untouched.IssueDate)

	noPayoutOut := requireOutcome(t, report, noPayout.ID)
	assert.Equal(t, OutcomeGenerated, noPayoutOut.Status)
	assert.Equal(t, StepSkipped, noPayoutOut.Payment.Status)
	generated := it.reload(t, noPayout.ID)
	assert.Nil(t, generated.PaymentURL)
	assert.Equal(t, day(2025, 6, 5), *generated.LastGeneratedOn)
	assert.Empty(t, it.checkout.inputs)

	// weekly rows stay selected on every run and stay untouched
	report, err = it.service.Run(ctx, day(2025, 6, 6))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, OutcomeSkippedUnknownFrequency, requireOutcome(t, report, weekly.ID).Status)
	assert.Equal(t, OutcomeSkippedAlreadyGenerated, requireOutcome(t, report, noPayout.ID).Status)
}

func requireOutcome(t *testing.T, report *RunReport, id int64) InvoiceOutcome {
	t.Helper()
	out, ok := report.Outcome(id)
	require.True(t, ok, "no outcome recorded for invoice %d", id)
	return out
}
