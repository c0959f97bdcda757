package recurrence

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/merchant"
	"github.com/invoicing/backend/internal/infrastructure/billing"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/notification"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// FallbackPaymentMessage is shown when no payment link could be created
const FallbackPaymentMessage = "Your invoice will be processed according to your agreement."

const invoiceEmailTemplate = `<html>
<body>
  <p>Dear {{.FirstName}},</p>
  <p>You have a new recurring invoice from {{.Company}}.</p>
  <p>Amount: {{.Amount}}</p>
  <p>Issue Date: {{.IssueDate}}</p>
  {{- if .PaymentURL}}
  <p><a href="{{.PaymentURL}}">Click here to pay your invoice</a></p>
  {{- else}}
  <p>{{.Fallback}}</p>
  {{- end}}
</body>
</html>
`

var emailTemplate = template.Must(template.New("recurring_invoice").Parse(invoiceEmailTemplate))

// EmailSender delivers one HTML email
type EmailSender interface {
	Send(ctx context.Context, email notification.Email) error
}

type emailData struct {
	FirstName  string
	Company    string
	Amount     string
	IssueDate  string
	PaymentURL string
	Fallback   string
}

// Notifier emails the customer about a regenerated invoice
type Notifier struct {
	sender   EmailSender
	currency billing.Currency
	logger   *zap.Logger
}

// NewNotifier creates a notifier formatting amounts in currency
func NewNotifier(sender EmailSender, currency billing.Currency, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		currency: currency,
		logger:   logger,
	}
}

// Subject returns the email subject for an invoice
func Subject(inv *invoice.Invoice, m *merchant.Merchant) string {
	return fmt.Sprintf("Your Recurring Invoice #%d from %s", inv.ID, m.CompanyName)
}

// Compose renders the email for an invoice in its current state.
func (n *Notifier) Compose(inv *invoice.Invoice, m *merchant.Merchant) (notification.Email, error) {
	data := emailData{
		FirstName: inv.CustomerFirstName,
		Company:   m.CompanyName,
		Amount:    n.currency.Format(inv.Amount),
		IssueDate: inv.IssueDate.Format(time.DateOnly),
		Fallback:  FallbackPaymentMessage,
	}
	if inv.HasPaymentURL() {
		data.PaymentURL = *inv.PaymentURL
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return notification.Email{}, fmt.Errorf("render invoice email: %w", err)
	}

	return notification.Email{
		To:      inv.CustomerEmail,
		ToName:  inv.CustomerName(),
		Subject: Subject(inv, m),
		HTML:    buf.String(),
	}, nil
}

// Notify never returns an error; send failures are logged and reported as a
// failed step.
func (n *Notifier) Notify(ctx context.Context, inv *invoice.Invoice, m *merchant.Merchant) StepResult {
	log := logger.Enrich(ctx, n.logger).With(zap.Int64("invoice_id", inv.ID), zap.Int64("merchant_id", m.ID))

	ctx, span := telemetry.StartSpan(ctx, "recurrence.notify", attribute.Int64("invoice.id", inv.ID))
	defer span.End()

	email, err := n.Compose(inv, m)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to compose invoice email", zap.Error(err))
		return failed(err)
	}

	if err := n.sender.Send(ctx, email); err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to send invoice email", zap.Error(err))
		return failed(err)
	}

	telemetry.SetOK(span)
	log.Info("Invoice email sent")
	return succeeded(email.To)
}
