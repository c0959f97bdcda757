package invoice

import (
	"strings"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the payment status of an invoice
type Status string

const (
	StatusDue      Status = "Due"
	StatusPaid     Status = "Paid"
	StatusCanceled Status = "canceled"
)

// IsValid returns true if the status is one of the known statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusDue, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Frequency is the billing cadence of a recurring invoice.
// Values read from storage are kept verbatim so that unknown cadences can be reported.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// ParseFrequency normalises user input into a Frequency
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", ErrUnknownFrequency
	}
	return f, nil
}

// IsValid returns true if the engine knows how to advance this frequency
func (f Frequency) IsValid() bool {
	return f == FrequencyMonthly || f == FrequencyYearly
}

// String returns the string representation of Frequency
func (f Frequency) String() string {
	return string(f)
}

// Invoice is both a one-off invoice and a recurring template.
// A recurring invoice is rolled forward in place every billing period; no new rows are created.
type Invoice struct {
	ID         int64
	MerchantID int64

	CustomerID        *int64
	CustomerFirstName string
	CustomerLastName  string
	CustomerEmail     string

	Amount          decimal.Decimal
	RecurringAmount *decimal.Decimal

	IssueDate           time.Time
	RecurrenceStartDate *time.Time
	LastGeneratedOn     *time.Time

	IsRecurring bool
	Frequency   Frequency
	Status      Status
	PaymentURL  *string
	Notes       string

	OriginalInvoiceID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer carries the customer snapshot taken when the invoice was created
type Customer struct {
	ID        *int64
	FirstName string
	LastName  string
	Email     string
}

// NewOneOffInvoice creates a non-recurring invoice in the Due state
func NewOneOffInvoice(merchantID int64, customer Customer, amount decimal.Decimal, issueDate time.Time) (*Invoice, error) {
	if err := validateBase(merchantID, customer, amount); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Invoice{
		MerchantID:        merchantID,
		CustomerID:        customer.ID,
		CustomerFirstName: customer.FirstName,
		CustomerLastName:  customer.LastName,
		CustomerEmail:     customer.Email,
		Amount:            amount,
		IssueDate:         DateOf(issueDate),
		Status:            StatusDue,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// NewRecurringInvoice creates a recurring invoice template anchored at startDate
func NewRecurringInvoice(
	merchantID int64,
	customer Customer,
	amount decimal.Decimal,
	issueDate time.Time,
	frequency Frequency,
	recurringAmount decimal.Decimal,
	startDate time.Time,
) (*Invoice, error) {
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "Recurring invoices require frequency 'monthly' or 'yearly'")
	}
	if !recurringAmount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_RECURRING_AMOUNT", "Recurring amount must be positive")
	}

	inv, err := NewOneOffInvoice(merchantID, customer, amount, issueDate)
	if err != nil {
		return nil, err
	}

	start := DateOf(startDate)
	inv.IsRecurring = true
	inv.Frequency = frequency
	inv.RecurringAmount = &recurringAmount
	inv.RecurrenceStartDate = &start
	return inv, nil
}

func validateBase(merchantID int64, customer Customer, amount decimal.Decimal) error {
	if merchantID <= 0 {
		return shared.NewDomainError("INVALID_MERCHANT", "Merchant ID is required")
	}
	if strings.TrimSpace(customer.Email) == "" {
		return shared.NewDomainError("INVALID_CUSTOMER", "Customer email is required")
	}
	if strings.TrimSpace(customer.FirstName) == "" || strings.TrimSpace(customer.LastName) == "" {
		return shared.NewDomainError("INVALID_CUSTOMER", "Customer name is required")
	}
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	return nil
}

// CustomerName returns "First Last"
func (i *Invoice) CustomerName() string {
	return strings.TrimSpace(i.CustomerFirstName + " " + i.CustomerLastName)
}

// HasPaymentURL returns true if a payable link is attached
func (i *Invoice) HasPaymentURL() bool {
	return i.PaymentURL != nil && *i.PaymentURL != ""
}

// ApplyRecurrence rolls the invoice into a new billing period.
// The status is reset to Due regardless of its prior value, the recurring amount
// (when set) replaces the billable amount and the stale payment link is cleared.
func (i *Invoice) ApplyRecurrence(nextIssueDate time.Time) {
	i.Status = StatusDue
	if i.RecurringAmount != nil {
		i.Amount = *i.RecurringAmount
	}
	i.IssueDate = DateOf(nextIssueDate)
	i.PaymentURL = nil
	i.UpdatedAt = time.Now()
}

// AttachPaymentURL records the hosted checkout link for the current period
func (i *Invoice) AttachPaymentURL(url string) {
	i.PaymentURL = &url
	i.UpdatedAt = time.Now()
}

// MarkGenerated records the date of the latest successful regeneration
func (i *Invoice) MarkGenerated(on time.Time) error {
	day := DateOf(on)
	if i.LastGeneratedOn != nil && day.Before(*i.LastGeneratedOn) {
		return ErrLastGeneratedRegression
	}
	i.LastGeneratedOn = &day
	i.UpdatedAt = time.Now()
	return nil
}

// MarkPaid applies an external payment confirmation. Only the status moves;
// a canceled template is settled as Paid but its recurrence stays off, unlike
// a manual ChangeStatus reactivation.
func (i *Invoice) MarkPaid() error {
	if i.Status == StatusPaid {
		return nil
	}
	i.Status = StatusPaid
	i.UpdatedAt = time.Now()
	return nil
}

// Cancel terminates the invoice and stops its recurrence
func (i *Invoice) Cancel() error {
	if i.Status == StatusCanceled {
		return ErrAlreadyCanceled
	}
	return i.ChangeStatus(StatusCanceled)
}

// ChangeStatus applies a status transition:
//
//	Due <-> Paid
//	canceled -> Due | Paid   (recurrence restored only if a frequency is still set)
//	* -> canceled            (recurrence cleared)
func (i *Invoice) ChangeStatus(target Status) error {
	if !target.IsValid() {
		return ErrInvalidStatusTransition
	}
	if i.Status == target {
		return nil
	}

	switch {
	case target == StatusCanceled:
		i.IsRecurring = false
	case i.Status == StatusCanceled:
		if i.Frequency != "" {
			i.IsRecurring = true
		}
	case i.Status == StatusDue && target == StatusPaid,
		i.Status == StatusPaid && target == StatusDue:
	default:
		return ErrInvalidStatusTransition
	}

	i.Status = target
	i.UpdatedAt = time.Now()
	return nil
}

// UpdateRecurringAmount changes the amount charged on future regenerations
func (i *Invoice) UpdateRecurringAmount(amount decimal.Decimal) error {
	if !i.IsRecurring {
		return ErrNotRecurring
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_RECURRING_AMOUNT", "Recurring amount must be positive")
	}
	i.RecurringAmount = &amount
	i.UpdatedAt = time.Now()
	return nil
}
