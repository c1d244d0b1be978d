package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is the API-facing representation of an amount. Internally every
// balance and ledger amount is an int64 of minor units (cents); the HTTP
// surface exchanges decimal strings so clients never deal in floats.
type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

var centsFactor = decimal.NewFromInt(100)

// MoneyFromCents renders minor units as a two-decimal string.
func MoneyFromCents(cents int64, currency string) Money {
	return Money{
		Amount:   decimal.NewFromInt(cents).Div(centsFactor).StringFixed(2),
		Currency: currency,
	}
}

// CentsFromAmount parses a decimal amount string into minor units. Amounts
// with more than two fractional digits are rejected rather than rounded.
func CentsFromAmount(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	scaled := d.Mul(centsFactor)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than two decimal places", amount)
	}
	return scaled.IntPart(), nil
}
