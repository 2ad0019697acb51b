package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO-4217 currency code carried on holds and transfers.
type Currency string

const (
	CurrencyUSD Currency = "usd"
)

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalizes raw input into a supported Currency.
func ParseCurrency(value string) (Currency, error) {
	switch Currency(strings.ToLower(strings.TrimSpace(value))) {
	case CurrencyUSD:
		return CurrencyUSD, nil
	}
	return "", fmt.Errorf("unsupported currency %q", value)
}
