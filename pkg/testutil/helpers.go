// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/payoff/pkg/amortization"
)

// FindPayment finds the payment for a period in a schedule.
// Returns a pointer to the payment if found, nil otherwise.
func FindPayment(payments []amortization.Payment, period int) *amortization.Payment {
	for i := range payments {
		if payments[i].Period == period {
			return &payments[i]
		}
	}
	return nil
}

// LastPayment returns the final payment of a schedule, or nil when it is empty.
func LastPayment(payments []amortization.Payment) *amortization.Payment {
	if len(payments) == 0 {
		return nil
	}
	return &payments[len(payments)-1]
}
