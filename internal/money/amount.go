// Package money provides a fixed-point monetary amount type backed by
// shopspring/decimal, used anywhere a payment, refund, or outbox record
// carries a currency amount.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lumenpay/gateway/internal/apperrors"
)

// Amount is a non-negative monetary value in a given ISO 4217 currency code.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// New parses a decimal string amount with its currency code, validating
// non-negativity and a plausible currency code shape.
func New(amount string, currency string) (Amount, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Amount{}, apperrors.Validation("invalid_amount", fmt.Sprintf("amount %q is not a valid decimal", amount))
	}
	return newFromDecimal(d, currency)
}

// FromCents builds an Amount from an integer minor-unit value, e.g. 1099 -> 10.99.
func FromCents(cents int64, currency string) (Amount, error) {
	d := decimal.New(cents, -2)
	return newFromDecimal(d, currency)
}

func newFromDecimal(d decimal.Decimal, currency string) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, apperrors.Validation("invalid_amount", "amount must not be negative")
	}
	if !isValidCurrency(currency) {
		return Amount{}, apperrors.Validation("invalid_currency", fmt.Sprintf("currency %q is not a recognized 3-letter code", currency))
	}
	return Amount{Value: d, Currency: currency}, nil
}

func isValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// String renders the amount as "12.34 USD".
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Value.StringFixed(2), a.Currency)
}

// IsZero reports whether the amount's value is zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// GreaterThan reports whether a is strictly greater than b. Callers must not
// compare amounts of differing currencies.
func (a Amount) GreaterThan(b Amount) bool {
	return a.Value.GreaterThan(b.Value)
}

// Sub returns a - b, same currency assumed.
func (a Amount) Sub(b Amount) Amount {
	return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency}
}

// Add returns a + b, same currency assumed.
func (a Amount) Add(b Amount) Amount {
	return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency}
}

// DecimalValue returns Amount.Value as a driver.Value so it can be bound
// directly as a numeric column parameter. Amount itself does not implement
// driver.Valuer.
func (a Amount) DecimalValue() (driver.Value, error) {
	return a.Value.Value()
}
