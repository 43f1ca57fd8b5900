package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code accepted for orders and payouts.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
	CurrencyEUR Currency = "EUR"
	CurrencyMXN Currency = "MXN"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyCAD,
	CurrencyEUR,
	CurrencyMXN,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency is case-insensitive.
func ParseCurrency(value string) (Currency, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == upper {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
