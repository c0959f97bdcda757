package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutSessionInput describes a one-line Checkout Session for an invoice
type CheckoutSessionInput struct {
	InvoiceID    int64
	IssueDate    time.Time
	Amount       decimal.Decimal
	CustomerName string
	MerchantName string
	// Destination is the connected account that receives the funds
	Destination string
}

// CheckoutSessionOutput is the created session
type CheckoutSessionOutput struct {
	SessionID string
	URL       string
	ExpiresAt time.Time
}

// ProductName is the line item name shown on the Checkout page.
func (in CheckoutSessionInput) ProductName() string {
	return "Invoice #" + formatID(in.InvoiceID) + " for " + in.CustomerName
}

// IdempotencyKey ties a session to one invoice period so retries within the
// same period return the same session.
func (in CheckoutSessionInput) IdempotencyKey() string {
	return "invoice-" + formatID(in.InvoiceID) + "-" + in.IssueDate.Format(time.DateOnly)
}
