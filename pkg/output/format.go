// Package output provides utilities for formatting and displaying amortization schedules.
package output

import (
	"bytes"
	"fmt"
	"io"

	"github.com/iwvelando/payoff/pkg/amortization"
	"github.com/iwvelando/payoff/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat writes a human-readable rather than machine-readable table.
// Amounts are rounded to cents and grouped by the English message printer.
func PrettyFormat(w io.Writer, schedule amortization.Schedule) {
	p := message.NewPrinter(language.English)
	amount := func(v float64) string {
		return p.Sprintf("$%.2f", format.Cents(v).InexactFloat64())
	}

	in := schedule.Input
	_, _ = fmt.Fprintf(w, "--- Schedule for %s at %s with %s/month ---\n",
		amount(in.Principal), format.Percent(in.AnnualInterestRate), amount(in.MonthlyPayment))

	if schedule.Empty() {
		_, _ = fmt.Fprintf(w, "No schedule to show\n")
		return
	}

	_, _ = fmt.Fprintf(w, "Period | Payment       | Principal     | Interest      | Remaining\n")
	_, _ = fmt.Fprintf(w, "______ | _____________ | _____________ | _____________ | _____________\n")
	for _, payment := range schedule.Payments {
		_, _ = fmt.Fprintf(w, "%6d | %13s | %13s | %13s | %s\n",
			payment.Period,
			amount(payment.Payment),
			amount(payment.Principal),
			amount(payment.Interest),
			amount(payment.RemainingPrincipal),
		)
	}

	summary := schedule.Summary()
	_, _ = p.Fprintf(w, "\n%d payments, %s paid, %s interest\n",
		summary.Periods, amount(summary.TotalPaid), amount(summary.TotalInterest))
}

// CsvFormat writes the schedule in comma-separated value format.
func CsvFormat(w io.Writer, schedule amortization.Schedule) {
	_, _ = fmt.Fprintf(w, `"period","payment","principal","interest","remaining principal"`+"\n")
	for _, payment := range schedule.Payments {
		_, _ = fmt.Fprintf(w, `"%d","%s","%s","%s","%s"`+"\n",
			payment.Period,
			format.Plain(payment.Payment),
			format.Plain(payment.Principal),
			format.Plain(payment.Interest),
			format.Plain(payment.RemainingPrincipal),
		)
	}
}

// CsvString returns the CSV rendering of a schedule.
func CsvString(schedule amortization.Schedule) string {
	var buf bytes.Buffer
	CsvFormat(&buf, schedule)
	return buf.String()
}
