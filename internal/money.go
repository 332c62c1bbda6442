package internal

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// CurrencyExponent returns the number of minor unit digits of a currency.
func CurrencyExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// CentsToDecimal converts an amount in minor units into a decimal in major
// units, e.g. 1999 usd -> 19.99.
func CentsToDecimal(cents int64, currency string) decimal.Decimal {
	return decimal.New(cents, -CurrencyExponent(currency))
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// DecimalToCents converts a major unit amount into minor units, rounding half
// away from zero. Amounts that do not fit in an int64 are rejected.
func DecimalToCents(amount decimal.Decimal, currency string) (int64, error) {
	cents := amount.Shift(CurrencyExponent(currency)).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %s %s is out of range", amount.String(), strings.ToUpper(currency))
	}
	return cents.IntPart(), nil
}

// FormatCents renders an amount in minor units as "19.99 USD".
func FormatCents(cents int64, currency string) string {
	exp := CurrencyExponent(currency)
	return fmt.Sprintf("%s %s", CentsToDecimal(cents, currency).StringFixed(exp), strings.ToUpper(currency))
}

// ParseTokenAmount parses a crypto token amount, rejecting negative or
// malformed values.
func ParseTokenAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid token amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("token amount must not be negative")
	}
	return d, nil
}
