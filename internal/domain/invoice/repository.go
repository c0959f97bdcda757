package invoice

import (
	"context"
	"time"
)

// Repository defines the persistence operations the invoice lifecycle needs.
// Every mutating method commits on its own; no transaction spans more than one invoice.
type Repository interface {
	// FindByID retrieves an invoice by its ID
	FindByID(ctx context.Context, id int64) (*Invoice, error)

	// Save persists a new invoice or updates an existing one
	Save(ctx context.Context, inv *Invoice) error

	// FindDueRecurring returns recurring invoices whose next billing date may have arrived:
	// never generated and started on or before today, or last generated before today.
	// Results are ordered by merchant and id.
	FindDueRecurring(ctx context.Context, today time.Time) ([]*Invoice, error)

	// ApplyRecurrence commits the period transition fields (status, amount, issue date, payment url)
	ApplyRecurrence(ctx context.Context, inv *Invoice) error

	// SetPaymentURL stores the payable link for the current period
	SetPaymentURL(ctx context.Context, id int64, url string) error

	// MarkGenerated sets last_generated_on for the invoice
	MarkGenerated(ctx context.Context, id int64, on time.Time) error

	// UpdateStatus commits status and recurrence flag changes made by the state machine
	UpdateStatus(ctx context.Context, inv *Invoice) error
}
