package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency is an ISO 4217 currency together with the number of decimals of
// its smallest subunit (2 for EUR, 0 for JPY, 3 for KWD).
type Currency struct {
	unit  currency.Unit
	scale int32
}

// ParseCurrency resolves a case-insensitive ISO 4217 code.
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return Currency{}, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return Currency{unit: unit, scale: int32(scale)}, nil
}

// Code returns the lowercase code Stripe expects, e.g. "eur".
func (c Currency) Code() string {
	return strings.ToLower(c.unit.String())
}

// Scale returns the number of minor-unit decimals.
func (c Currency) Scale() int32 {
	return c.scale
}

// ToMinorUnits converts a major-unit amount to the smallest subunit,
// rounding half away from zero.
func (c Currency) ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(c.scale).Round(0).IntPart()
}

// Format renders amount with the currency's narrow symbol at its scale,
// e.g. "€9.99" or "¥1000".
func (c Currency) Format(amount decimal.Decimal) string {
	return fmt.Sprint(currency.NarrowSymbol(c.unit)) + amount.StringFixed(c.scale)
}
