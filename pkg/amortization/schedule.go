// Package amortization computes month-by-month loan payoff schedules for a
// fixed monthly payment.
package amortization

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/payoff/pkg/constants"
	"github.com/iwvelando/payoff/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// maxPaymentAdjustments bounds the extra cents PaymentForTerm adds on top of
// the rounded formula payment.
const maxPaymentAdjustments = 3

var (
	// ErrInvalidInput is returned for a non-positive principal or payment, or a negative rate.
	ErrInvalidInput = errors.New("invalid loan parameters")

	// ErrPaymentTooLow is returned when the payment does not cover the first period's interest.
	ErrPaymentTooLow = errors.New("monthly payment does not cover accrued interest")

	// ErrExceedsMaxTerm is returned when the balance is not retired within MaxAmortizationPeriods.
	ErrExceedsMaxTerm = errors.New("schedule exceeds maximum term")
)

// Input holds the parameters of a schedule.
type Input struct {
	Principal          float64 `json:"principal"`
	AnnualInterestRate float64 `json:"annualInterestRate"`
	MonthlyPayment     float64 `json:"monthlyPayment"`
}

// Payment holds the values for a given period.
type Payment struct {
	Period             int     `json:"period"`
	Payment            float64 `json:"payment"`
	Principal          float64 `json:"principal"`
	Interest           float64 `json:"interest"`
	RemainingPrincipal float64 `json:"remainingPrincipal"`
}

// Schedule is a complete payoff schedule together with the input that produced it.
type Schedule struct {
	Input    Input
	Payments []Payment
}

// Validate checks the input without running the schedule.
func (in Input) Validate() error {
	if !finite(in.Principal, in.AnnualInterestRate, in.MonthlyPayment) ||
		in.Principal <= 0 || in.AnnualInterestRate < 0 || in.MonthlyPayment <= 0 {
		return fmt.Errorf("%w: principal=%.2f rate=%.4f payment=%.2f",
			ErrInvalidInput, in.Principal, in.AnnualInterestRate, in.MonthlyPayment)
	}
	if in.MonthlyPayment <= MinimumPayment(in.Principal, in.AnnualInterestRate) {
		return fmt.Errorf("%w: payment %.2f <= first period interest %.2f",
			ErrPaymentTooLow, in.MonthlyPayment, MinimumPayment(in.Principal, in.AnnualInterestRate))
	}
	return nil
}

// ComputeSchedule returns the payoff schedule for a loan, or an empty result
// when no schedule can be shown: invalid parameters, a payment that never
// shrinks the balance, or a balance that outlives MaxAmortizationPeriods.
func ComputeSchedule(principal, annualInterestRate, monthlyPayment float64) []Payment {
	schedule, err := Compute(Input{
		Principal:          principal,
		AnnualInterestRate: annualInterestRate,
		MonthlyPayment:     monthlyPayment,
	})
	if err != nil {
		return nil
	}
	return schedule.Payments
}

// Compute runs the schedule and reports why it is empty when it is.
func Compute(in Input) (Schedule, error) {
	if err := in.Validate(); err != nil {
		return Schedule{Input: in}, err
	}

	monthlyRate := mathutil.MonthlyRate(in.AnnualInterestRate)
	payments := make([]Payment, 0, estimatePeriods(in, monthlyRate))

	remaining := in.Principal
	for period := 1; remaining > 0 && period <= constants.MaxAmortizationPeriods; period++ {
		payment := in.MonthlyPayment
		interest := remaining * monthlyRate
		principal := payment - interest

		// The final payment only covers what is left.
		if remaining < payment {
			principal = remaining
			payment = remaining + interest
		}

		remaining -= principal
		if remaining < 0 {
			principal += remaining
			remaining = 0
		}

		payments = append(payments, Payment{
			Period:             period,
			Payment:            payment,
			Principal:          principal,
			Interest:           interest,
			RemainingPrincipal: remaining,
		})
	}

	if remaining > 0 {
		return Schedule{Input: in}, fmt.Errorf("%w: %.2f still owed after %d payments",
			ErrExceedsMaxTerm, remaining, constants.MaxAmortizationPeriods)
	}

	return Schedule{Input: in, Payments: payments}, nil
}

// MinimumPayment returns the interest accrued on the principal in the first
// period. A payment must exceed it for the balance to shrink.
func MinimumPayment(principal, annualInterestRate float64) float64 {
	return principal * mathutil.MonthlyRate(annualInterestRate)
}

// PaymentForTerm calculates the fixed monthly payment that retires the
// principal in at most termMonths periods. The standard amortization formula
// gives the exact payment; it is rounded up to the next cent, and raised by
// further cents if floating point leftovers would still spill past the term.
func PaymentForTerm(principal, annualInterestRate float64, termMonths int) (float64, error) {
	if !finite(principal, annualInterestRate) || principal <= 0 || annualInterestRate < 0 {
		return 0, fmt.Errorf("%w: principal=%.2f rate=%.4f", ErrInvalidInput, principal, annualInterestRate)
	}
	if termMonths <= 0 || termMonths > constants.MaxAmortizationPeriods {
		return 0, fmt.Errorf("%w: term of %d months outside 1..%d",
			ErrInvalidInput, termMonths, constants.MaxAmortizationPeriods)
	}

	exact := principal / float64(termMonths)
	if annualInterestRate > 0 {
		periodicInterestRate := mathutil.MonthlyRate(annualInterestRate)
		power := math.Pow(1.00+periodicInterestRate, float64(termMonths))
		discountFactor := (power - 1.00) / power
		exact = principal * periodicInterestRate / discountFactor
	}

	cent := decimal.New(1, -constants.CurrencyPlaces)
	payment := decimal.NewFromFloat(exact).RoundCeil(constants.CurrencyPlaces)
	for attempt := 0; attempt < maxPaymentAdjustments; attempt++ {
		candidate := payment.InexactFloat64()
		schedule, err := Compute(Input{
			Principal:          principal,
			AnnualInterestRate: annualInterestRate,
			MonthlyPayment:     candidate,
		})
		if err == nil && len(schedule.Payments) <= termMonths {
			return candidate, nil
		}
		payment = payment.Add(cent)
	}
	return 0, fmt.Errorf("%w: no payment retires %.2f in %d months",
		ErrExceedsMaxTerm, principal, termMonths)
}

func estimatePeriods(in Input, monthlyRate float64) int {
	n := in.Principal / in.MonthlyPayment
	if monthlyRate > 0 {
		// n = -log(1 - r*P/A) / log(1 + r)
		ratio := 1 - monthlyRate*in.Principal/in.MonthlyPayment
		if ratio <= 0 {
			return constants.MaxAmortizationPeriods
		}
		n = -math.Log(ratio) / math.Log1p(monthlyRate)
	}
	return int(math.Max(1, math.Min(math.Ceil(n), constants.MaxAmortizationPeriods)))
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
