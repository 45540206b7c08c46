package validation

import (
	"fmt"

	"github.com/iwvelando/payoff/pkg/amortization"
	"github.com/iwvelando/payoff/pkg/constants"
	"github.com/iwvelando/payoff/pkg/format"
	"github.com/iwvelando/payoff/pkg/mathutil"
)

const (
	// HighInterestRate is the annual rate above which a loan is flagged.
	HighInterestRate = 36.0

	// LongTermMonths is the schedule length above which a loan is flagged.
	LongTermMonths = 30 * constants.MonthsPerYear

	// LowPrincipalShare is the first-payment principal share below which a loan is flagged.
	LowPrincipalShare = 10.0
)

// LoanWarnings returns non-fatal observations about a loan. Inputs that cannot
// produce a schedule yield a single warning describing why.
func LoanWarnings(in amortization.Input) []string {
	schedule, err := amortization.Compute(in)
	if err != nil {
		return []string{fmt.Sprintf("no schedule can be shown: %v", err)}
	}

	var warnings []string
	if in.AnnualInterestRate > HighInterestRate {
		warnings = append(warnings, fmt.Sprintf("annual interest rate %s is above %s",
			format.Percent(in.AnnualInterestRate), format.Percent(HighInterestRate)))
	}

	if n := len(schedule.Payments); n > LongTermMonths {
		warnings = append(warnings, fmt.Sprintf("payoff takes %d months, longer than %d years",
			n, LongTermMonths/constants.MonthsPerYear))
	}

	first := schedule.Payments[0]
	share := mathutil.CalculatePercentage(first.Principal, first.Payment)
	if share < LowPrincipalShare {
		warnings = append(warnings, fmt.Sprintf("only %.1f%% of the first payment reduces principal", share))
	}

	summary := schedule.Summary()
	if summary.TotalInterest > in.Principal {
		warnings = append(warnings, fmt.Sprintf("total interest %s exceeds the principal %s",
			format.Currency(summary.TotalInterest), format.Currency(in.Principal)))
	}

	return warnings
}
