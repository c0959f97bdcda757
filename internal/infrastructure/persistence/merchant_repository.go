package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoicing/backend/internal/domain/merchant"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMerchantRepository implements merchant.Repository using GORM
type GormMerchantRepository struct {
	db *gorm.DB
}

// NewGormMerchantRepository creates a new GormMerchantRepository
func NewGormMerchantRepository(db *gorm.DB) *GormMerchantRepository {
	return &GormMerchantRepository{db: db}
}

// FindByID finds a merchant by its ID
func (r *GormMerchantRepository) FindByID(ctx context.Context, id int64) (*merchant.Merchant, error) {
	var model models.MerchantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a merchant
func (r *GormMerchantRepository) Save(ctx context.Context, m *merchant.Merchant) error {
	model := &models.MerchantModel{}
	model.FromDomain(m)

	db := r.db.WithContext(ctx)
	if model.ID == 0 {
		if err := db.Create(model).Error; err != nil {
			return fmt.Errorf("create merchant: %w", err)
		}
		m.ID = model.ID
		return nil
	}
	if err := db.Save(model).Error; err != nil {
		return fmt.Errorf("save merchant %d: %w", m.ID, err)
	}
	return nil
}
