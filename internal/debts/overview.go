package debts

import (
	"context"
	"errors"

	"github.com/iwvelando/payoff/internal/advisor"
	"github.com/iwvelando/payoff/pkg/amortization"
	"go.uber.org/zap"
)

// Reason codes for a debt without a schedule.
const (
	ReasonInvalidInput   = "invalid_input"
	ReasonPaymentTooLow  = "payment_too_low"
	ReasonExceedsMaxTerm = "exceeds_max_term"
)

// DebtSummary pairs a debt with the summary of its schedule.
type DebtSummary struct {
	Debt     Debt                 `json:"debt"`
	Summary  amortization.Summary `json:"summary"`
	Feasible bool                 `json:"feasible"`
	Reason   string               `json:"reason,omitempty"`
}

// Overview aggregates every debt of a user.
type Overview struct {
	Debts               []DebtSummary `json:"debts"`
	TotalBalance        float64       `json:"totalBalance"`
	TotalMonthlyPayment float64       `json:"totalMonthlyPayment"`
	TotalInterest       float64       `json:"totalInterest"`
	PayoffMonths        int           `json:"payoffMonths"`
	Infeasible          int           `json:"infeasible"`
}

// Reason maps a calculator error onto a reason code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, amortization.ErrPaymentTooLow):
		return ReasonPaymentTooLow
	case errors.Is(err, amortization.ErrExceedsMaxTerm):
		return ReasonExceedsMaxTerm
	default:
		return ReasonInvalidInput
	}
}

// Overview summarizes the schedules of all of a user's debts. TotalInterest
// and PayoffMonths only cover debts with a schedule.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	debts, err := s.List(ctx, userID)
	if err != nil {
		return Overview{}, err
	}

	overview := Overview{Debts: make([]DebtSummary, 0, len(debts))}
	for _, debt := range debts {
		schedule, err := amortization.Compute(debt.Input())
		summary := DebtSummary{
			Debt:     debt,
			Summary:  schedule.Summary(),
			Feasible: err == nil,
			Reason:   Reason(err),
		}
		overview.Debts = append(overview.Debts, summary)

		overview.TotalBalance += debt.Principal
		overview.TotalMonthlyPayment += debt.MonthlyPayment
		if !summary.Feasible {
			overview.Infeasible++
			continue
		}
		overview.TotalInterest += summary.Summary.TotalInterest
		overview.PayoffMonths = max(overview.PayoffMonths, summary.Summary.Periods)
	}
	return overview, nil
}

// Advice asks the advisor for a payoff strategy over the user's debts.
func (s *Service) Advice(ctx context.Context, userID string) (advisor.Advice, error) {
	overview, err := s.Overview(ctx, userID)
	if err != nil {
		return advisor.Advice{}, err
	}

	req := advisor.Request{
		TotalBalance:        overview.TotalBalance,
		TotalMonthlyPayment: overview.TotalMonthlyPayment,
		Debts:               make([]advisor.DebtSnapshot, 0, len(overview.Debts)),
	}
	for _, d := range overview.Debts {
		req.Debts = append(req.Debts, advisor.DebtSnapshot{
			Name:               d.Debt.Name,
			Kind:               string(d.Debt.Kind),
			Balance:            d.Debt.Principal,
			AnnualInterestRate: d.Debt.AnnualInterestRate,
			MonthlyPayment:     d.Debt.MonthlyPayment,
			PayoffMonths:       d.Summary.Periods,
			TotalInterest:      d.Summary.TotalInterest,
			Feasible:           d.Feasible,
		})
	}

	advice, err := s.advisor.Generate(ctx, req)
	if err != nil {
		s.logger.Error("advice generation failed",
			zap.String("op", "debts.Advice"),
			zap.String("user", userID),
			zap.Error(err),
		)
		return advisor.Advice{}, err
	}
	return advice, nil
}
