// Package debts manages a user's debts and derives their payoff schedules.
package debts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/payoff/pkg/amortization"
)

// Collection is the document store collection holding debts.
const Collection = "debts"

var (
	// ErrInvalidDebt is returned when a debt fails validation.
	ErrInvalidDebt = errors.New("invalid debt")

	// ErrDebtExists is returned when creating a debt under an ID already in use.
	ErrDebtExists = errors.New("debt already exists")
)

// Kind classifies a debt.
type Kind string

const (
	KindCreditCard Kind = "credit_card"
	KindLoan       Kind = "loan"
	KindMortgage   Kind = "mortgage"
	KindOther      Kind = "other"
)

// Debt is a balance the user is paying down with a fixed monthly payment.
type Debt struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Kind               Kind      `json:"kind"`
	Principal          float64   `json:"principal"`
	AnnualInterestRate float64   `json:"annualInterestRate"`
	MonthlyPayment     float64   `json:"monthlyPayment"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Input returns the calculator input for the debt.
func (d Debt) Input() amortization.Input {
	return amortization.Input{
		Principal:          d.Principal,
		AnnualInterestRate: d.AnnualInterestRate,
		MonthlyPayment:     d.MonthlyPayment,
	}
}

// Validate checks the fields a debt must carry. A payment too small to cover
// interest is allowed; the schedule reports it.
func (d *Debt) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDebt)
	}
	if d.Kind == "" {
		d.Kind = KindOther
	}
	switch d.Kind {
	case KindCreditCard, KindLoan, KindMortgage, KindOther:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDebt, d.Kind)
	}
	if err := d.Input().Validate(); errors.Is(err, amortization.ErrInvalidInput) {
		return fmt.Errorf("%w: %v", ErrInvalidDebt, err)
	}
	return nil
}
