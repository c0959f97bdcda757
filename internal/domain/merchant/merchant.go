package merchant

import (
	"strings"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
)

// Merchant is the party issuing invoices and receiving payouts
type Merchant struct {
	ID          int64
	CompanyName string
	Email       string
	// PayoutDestination is the connected payment-provider account funds are transferred to
	PayoutDestination string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewMerchant creates a merchant without a payout destination
func NewMerchant(companyName, email string) (*Merchant, error) {
	companyName = strings.TrimSpace(companyName)
	email = strings.TrimSpace(email)
	if companyName == "" {
		return nil, shared.NewDomainError("INVALID_COMPANY_NAME", "Company name cannot be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.NewDomainError("INVALID_EMAIL", "A valid email is required")
	}

	now := time.Now()
	return &Merchant{
		CompanyName: companyName,
		Email:       email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// HasPayoutDestination returns true if the merchant can receive checkout transfers
func (m *Merchant) HasPayoutDestination() bool {
	return strings.TrimSpace(m.PayoutDestination) != ""
}

// ConnectPayoutDestination records the connected account id
func (m *Merchant) ConnectPayoutDestination(accountID string) {
	m.PayoutDestination = strings.TrimSpace(accountID)
	m.UpdatedAt = time.Now()
}
