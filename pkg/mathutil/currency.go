// Package mathutil provides small numeric helpers for currency values.
package mathutil

import (
	"github.com/iwvelando/payoff/pkg/constants"
)

// MonthlyRate converts an annual percentage rate into a periodic monthly rate.
func MonthlyRate(annualInterestRate float64) float64 {
	return annualInterestRate / constants.PercentageMultiplier / constants.MonthsPerYear
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * constants.PercentageMultiplier
}
