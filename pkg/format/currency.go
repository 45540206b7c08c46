// Package format renders currency and rate values for display.
package format

import (
	"strings"

	"github.com/iwvelando/payoff/pkg/constants"
	"github.com/shopspring/decimal"
)

// Cents rounds an amount to whole cents, half away from zero.
func Cents(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(constants.CurrencyPlaces)
}

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	rounded := Cents(amount)
	formatted := formatPositiveCurrency(rounded.Abs())
	if rounded.IsNegative() {
		return "-$" + formatted
	}
	return "$" + formatted
}

// Plain returns the amount rounded to cents with no separators, suitable for CSV.
func Plain(amount float64) string {
	return Cents(amount).StringFixed(constants.CurrencyPlaces)
}

// Percent renders an annual rate such as 18.5 as "18.50%".
func Percent(rate float64) string {
	return decimal.NewFromFloat(rate).StringFixed(constants.CurrencyPlaces) + "%"
}

func formatPositiveCurrency(value decimal.Decimal) string {
	formatted := value.StringFixed(constants.CurrencyPlaces)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
