package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements invoice.Repository using GORM.
// Every write is a single UPDATE scoped to one row and commits on its own.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id int64) (*invoice.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates the invoice when it has no ID yet, otherwise updates every column
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoice.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	db := r.db.WithContext(ctx)

	if model.ID == 0 {
		if err := db.Create(model).Error; err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		inv.ID = model.ID
		return nil
	}
	if err := db.Save(model).Error; err != nil {
		return fmt.Errorf("save invoice %d: %w", inv.ID, err)
	}
	return nil
}

// FindDueRecurring returns recurring invoices that were never generated and have
// started, or that were last generated before today
func (r *GormInvoiceRepository) FindDueRecurring(ctx context.Context, today time.Time) ([]*invoice.Invoice, error) {
	day := invoice.DateOf(today)

	var rows []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("is_recurring = ?", true).
		Where("((last_generated_on IS NULL AND recurrence_start_date <= ?) OR (last_generated_on IS NOT NULL AND last_generated_on < ?))", day, day).
		Order("merchant_id ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select due recurring invoices: %w", err)
	}

	result := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// ApplyRecurrence commits the period transition fields of inv
func (r *GormInvoiceRepository) ApplyRecurrence(ctx context.Context, inv *invoice.Invoice) error {
	return r.update(ctx, inv.ID, map[string]any{
		"status":      string(inv.Status),
		"amount":      inv.Amount,
		"issue_date":  invoice.DateOf(inv.IssueDate),
		"payment_url": nil,
		"updated_at":  time.Now(),
	})
}

// SetPaymentURL stores the hosted checkout link
func (r *GormInvoiceRepository) SetPaymentURL(ctx context.Context, id int64, url string) error {
	return r.update(ctx, id, map[string]any{
		"payment_url": url,
		"updated_at":  time.Now(),
	})
}

// MarkGenerated sets last_generated_on. The update never moves the marker backwards.
func (r *GormInvoiceRepository) MarkGenerated(ctx context.Context, id int64, on time.Time) error {
	day := invoice.DateOf(on)

	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND (last_generated_on IS NULL OR last_generated_on <= ?)", id, day).
		Updates(map[string]any{
			"last_generated_on": day,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("mark invoice %d generated: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return invoice.ErrLastGeneratedRegression
}

// UpdateStatus commits status and the recurrence flag
func (r *GormInvoiceRepository) UpdateStatus(ctx context.Context, inv *invoice.Invoice) error {
	return r.update(ctx, inv.ID, map[string]any{
		"status":       string(inv.Status),
		"is_recurring": inv.IsRecurring,
		"updated_at":   time.Now(),
	})
}

func (r *GormInvoiceRepository) update(ctx context.Context, id int64, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update invoice %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
