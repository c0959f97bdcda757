package models

import (
	"time"

	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for invoice.Invoice
type InvoiceModel struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	MerchantID int64 `gorm:"not null;index:idx_invoices_merchant"`

	CustomerID        *int64 `gorm:"index"`
	CustomerFirstName string `gorm:"type:varchar(100);not null"`
	CustomerLastName  string `gorm:"type:varchar(100);not null"`
	CustomerEmail     string `gorm:"type:varchar(255);not null"`

	Amount          decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	RecurringAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`

	IssueDate           time.Time  `gorm:"type:date;not null"`
	RecurrenceStartDate *time.Time `gorm:"type:date"`
	LastGeneratedOn     *time.Time `gorm:"type:date"`

	IsRecurring bool    `gorm:"not null;default:false;index:idx_invoices_recurring"`
	Frequency   string  `gorm:"type:varchar(20)"`
	Status      string  `gorm:"type:varchar(20);not null;default:'Due'"`
	PaymentURL  *string `gorm:"type:text"`
	Notes       string  `gorm:"type:text"`

	OriginalInvoiceID *int64

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to an invoice entity
func (m *InvoiceModel) ToDomain() *invoice.Invoice {
	return &invoice.Invoice{
		ID:                  m.ID,
		MerchantID:          m.MerchantID,
		CustomerID:          m.CustomerID,
		CustomerFirstName:   m.CustomerFirstName,
		CustomerLastName:    m.CustomerLastName,
		CustomerEmail:       m.CustomerEmail,
		Amount:              m.Amount,
		RecurringAmount:     m.RecurringAmount,
		IssueDate:           invoice.DateOf(m.IssueDate),
		RecurrenceStartDate: datePtr(m.RecurrenceStartDate),
		LastGeneratedOn:     datePtr(m.LastGeneratedOn),
		IsRecurring:         m.IsRecurring,
		Frequency:           invoice.Frequency(m.Frequency),
		Status:              invoice.Status(m.Status),
		PaymentURL:          m.PaymentURL,
		Notes:               m.Notes,
		OriginalInvoiceID:   m.OriginalInvoiceID,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from an invoice entity
func (m *InvoiceModel) FromDomain(inv *invoice.Invoice) {
	m.ID = inv.ID
	m.MerchantID = inv.MerchantID
	m.CustomerID = inv.CustomerID
	m.CustomerFirstName = inv.CustomerFirstName
	m.CustomerLastName = inv.CustomerLastName
	m.CustomerEmail = inv.CustomerEmail
	m.Amount = inv.Amount
	m.RecurringAmount = inv.RecurringAmount
	m.IssueDate = invoice.DateOf(inv.IssueDate)
	m.RecurrenceStartDate = datePtr(inv.RecurrenceStartDate)
	m.LastGeneratedOn = datePtr(inv.LastGeneratedOn)
	m.IsRecurring = inv.IsRecurring
	m.Frequency = string(inv.Frequency)
	m.Status = string(inv.Status)
	m.PaymentURL = inv.PaymentURL
	m.Notes = inv.Notes
	m.OriginalInvoiceID = inv.OriginalInvoiceID
	m.CreatedAt = inv.CreatedAt
	m.UpdatedAt = inv.UpdatedAt
}

// InvoiceModelFromDomain creates a persistence model from an invoice entity
func InvoiceModelFromDomain(inv *invoice.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := invoice.DateOf(*t)
	return &d
}
