package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO 4217 code a wallet is denominated in. Wallets are
// single-currency; there is no conversion anywhere in this engine.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
	CurrencyEUR Currency = "EUR"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyCAD,
	CurrencyEUR,
}

// IsValid reports whether the value is a supported currency code.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into Currency, accepting lowercase codes.
func ParseCurrency(value string) (Currency, error) {
	upper := Currency(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validCurrencies {
		if candidate == upper {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
