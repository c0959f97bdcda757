package models

import (
	"time"

	"github.com/invoicing/backend/internal/domain/merchant"
)

// MerchantModel is the persistence model for merchant.Merchant
type MerchantModel struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	CompanyName     string    `gorm:"type:varchar(200);not null"`
	Email           string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	StripeAccountID string    `gorm:"type:varchar(255)"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MerchantModel) TableName() string {
	return "merchants"
}

// ToDomain converts the persistence model to a merchant entity
func (m *MerchantModel) ToDomain() *merchant.Merchant {
	return &merchant.Merchant{
		ID:                m.ID,
		CompanyName:       m.CompanyName,
		Email:             m.Email,
		PayoutDestination: m.StripeAccountID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a merchant entity
func (m *MerchantModel) FromDomain(mer *merchant.Merchant) {
	m.ID = mer.ID
	m.CompanyName = mer.CompanyName
	m.Email = mer.Email
	m.StripeAccountID = mer.PayoutDestination
	m.CreatedAt = mer.CreatedAt
	m.UpdatedAt = mer.UpdatedAt
}

// All returns every model for AutoMigrate in tests and local tooling
func All() []any {
	return []any{&MerchantModel{}, &InvoiceModel{}}
}
