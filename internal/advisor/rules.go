package advisor

import (
	"context"
	"fmt"
	"sort"

	"github.com/iwvelando/payoff/pkg/format"
)

// RateSpreadForAvalanche is the spread in annual rate, in percentage points,
// above which paying the highest rate first is recommended.
const RateSpreadForAvalanche = 2.0

// RuleGenerator produces deterministic advice without a remote service.
type RuleGenerator struct{}

// NewRuleGenerator returns a RuleGenerator.
func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{}
}

// Generate builds advice from the debt summary without any network call.
func (g *RuleGenerator) Generate(_ context.Context, req Request) (Advice, error) {
	advice := g.advise(req)
	advice.Source = "rules"
	if err := advice.Validate(); err != nil {
		return Advice{}, &GenerationError{Provider: "rules", Err: err}
	}
	return advice, nil
}

func (g *RuleGenerator) advise(req Request) Advice {
	if len(req.Debts) == 0 {
		return Advice{
			Summary:  "No debts are being tracked.",
			Strategy: StrategyMaintain,
			Steps:    []string{"Keep building savings while no balances are outstanding."},
		}
	}

	var steps []string
	for _, d := range req.Debts {
		if !d.Feasible && len(steps) < MaxSteps-1 {
			steps = append(steps, fmt.Sprintf("Raise the payment on %s: %s/month never retires the %s balance.",
				d.Name, format.Currency(d.MonthlyPayment), format.Currency(d.Balance)))
		}
	}

	debts := append([]DebtSnapshot(nil), req.Debts...)
	lowRate, highRate := debts[0].AnnualInterestRate, debts[0].AnnualInterestRate
	for _, d := range debts {
		lowRate = min(lowRate, d.AnnualInterestRate)
		highRate = max(highRate, d.AnnualInterestRate)
	}

	strategy := StrategySnowball
	if highRate-lowRate > RateSpreadForAvalanche {
		strategy = StrategyAvalanche
		sort.SliceStable(debts, func(i, j int) bool { return debts[i].AnnualInterestRate > debts[j].AnnualInterestRate })
	} else {
		sort.SliceStable(debts, func(i, j int) bool { return debts[i].Balance < debts[j].Balance })
	}

	if len(debts) == 1 {
		strategy = StrategyMaintain
	}

	for _, d := range debts {
		if len(steps) >= MaxSteps-1 {
			break
		}
		steps = append(steps, fmt.Sprintf("Pay %s (%s at %s) with any extra cash once minimums are covered.",
			d.Name, format.Currency(d.Balance), format.Percent(d.AnnualInterestRate)))
	}
	steps = append(steps, "Roll each cleared payment into the next debt on the list.")

	summary := fmt.Sprintf("%d debts totalling %s with %s/month in payments.",
		len(req.Debts), format.Currency(req.TotalBalance), format.Currency(req.TotalMonthlyPayment))
	return Advice{Summary: summary, Strategy: strategy, Steps: steps}
}
