package providers

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in an ISO 4217 currency
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money value from a decimal amount
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// ParseMoney parses an upstream amount string. Malformed or empty input
// yields zero rather than an error.
func ParseMoney(amount, currency string) Money {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		d = decimal.Zero
	}
	return NewMoney(d, currency)
}

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// String renders the amount with two decimals followed by the currency
func (m Money) String() string {
	if m.Currency == "" {
		return m.Amount.StringFixed(2)
	}
	return m.Amount.StringFixed(2) + " " + m.Currency
}
