package merchant

import "context"

// Repository defines persistence operations for merchants
type Repository interface {
	// FindByID retrieves a merchant, returning shared.ErrNotFound when absent
	FindByID(ctx context.Context, id int64) (*Merchant, error)

	// Save persists a new merchant or updates an existing one
	Save(ctx context.Context, m *Merchant) error
}
