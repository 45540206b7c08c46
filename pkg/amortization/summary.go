package amortization

// Summary aggregates a schedule.
type Summary struct {
	Periods        int     `json:"periods"`
	TotalPaid      float64 `json:"totalPaid"`
	TotalPrincipal float64 `json:"totalPrincipal"`
	TotalInterest  float64 `json:"totalInterest"`
	FinalPayment   float64 `json:"finalPayment"`
}

// Summary sums the payments of the schedule. An empty schedule yields a zero Summary.
func (s Schedule) Summary() Summary {
	return Summarize(s.Payments)
}

// Summarize sums a sequence of payments.
func Summarize(payments []Payment) Summary {
	var summary Summary
	for _, p := range payments {
		summary.TotalPaid += p.Payment
		summary.TotalPrincipal += p.Principal
		summary.TotalInterest += p.Interest
	}
	summary.Periods = len(payments)
	if n := len(payments); n > 0 {
		summary.FinalPayment = payments[n-1].Payment
	}
	return summary
}

// Empty reports whether the schedule has no payments to show.
func (s Schedule) Empty() bool {
	return len(s.Payments) == 0
}
