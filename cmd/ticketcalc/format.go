package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/TheNoZER0/ticketcalculator/pkg/cost"
	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
	"github.com/TheNoZER0/ticketcalculator/pkg/pricing"
	"github.com/TheNoZER0/ticketcalculator/pkg/scenario"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
	"github.com/TheNoZER0/ticketcalculator/pkg/validation"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

func printValidationReport(w io.Writer, r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, badStyle.Render(fmt.Sprintf("ERRORS (%d):", len(r.Errors))))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  [%s] %s\n", e.Level, e.Message)
			if e.SpecPath != "" {
				fmt.Fprintf(w, "    -> %s = %v\n", e.SpecPath, e.ActualValue)
			}
			if e.Expected != "" {
				fmt.Fprintf(w, "    expected: %s\n", e.Expected)
			}
			if e.ConflictWith != "" {
				fmt.Fprintf(w, "    conflicts with: %s\n", e.ConflictWith)
			}
			for _, s := range e.Suggestions {
				fmt.Fprintf(w, "    * %s\n", s)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, noteStyle.Render(fmt.Sprintf("WARNINGS (%d):", len(r.Warnings))))
		for _, wr := range r.Warnings {
			fmt.Fprintf(w, "  [%s] %s\n", wr.Level, wr.Message)
			if wr.SpecPath != "" {
				fmt.Fprintf(w, "    -> %s = %v\n", wr.SpecPath, wr.ActualValue)
			}
			if wr.Expected != "" {
				fmt.Fprintf(w, "    expected: %s\n", wr.Expected)
			}
			for _, s := range wr.Suggestions {
				fmt.Fprintf(w, "    * %s\n", s)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Info) > 0 {
		fmt.Fprintf(w, "INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Fprintf(w, "  [%s] %s\n", i.Level, i.Message)
		}
		fmt.Fprintln(w)
	}

	if r.Valid {
		fmt.Fprintf(w, "Result: %s (%s)\n", okStyle.Render("VALID"), r.Summary)
	} else {
		fmt.Fprintf(w, "Result: %s (%s)\n", badStyle.Render("INVALID"), r.Summary)
	}
}

func printScenarios(w io.Writer, cfg spec.EventConfig, remaining float64, scenarios []scenario.Scenario) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%s merch, %d attendees)", cfg.Name, cfg.MerchMode.Short(), cfg.TotalAttendees)))
	fmt.Fprintf(w, "Remaining budget: %s\n\n", formatMoney(remaining))

	merge := table.RowConfig{AutoMerge: true}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Sponsorship", "Budget After", "Tier", "Sold", "Var. Cost", "Net", "Gross", "vs Last Year", "Notes"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true, Align: text.AlignRight},
		{Number: 2, AutoMerge: true, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for _, sc := range scenarios {
		alloc := formatMoney(sc.SponsorAllocation)
		after := formatMoney(sc.PotentialRemainingBudget)
		notes := noteStyle.Render(strings.Join(sc.Notes, "; "))
		if sc.Status == scenario.StatusOverBudget || sc.Status == scenario.StatusInputError {
			notes = badStyle.Render(strings.Join(sc.Notes, "; "))
		}
		if len(sc.Tiers) == 0 {
			t.AppendRow(table.Row{alloc, after, "-", "", "", "", "", "", notes}, merge)
			continue
		}
		for _, pt := range sc.Tiers {
			t.AppendRow(table.Row{
				alloc,
				after,
				pt.Name,
				pt.Sold,
				formatMoney(pt.VariableCost),
				formatMoney(pt.NetPrice),
				formatMoney(pt.GrossPrice),
				formatCap(pt.TooExpensive),
				notes,
			}, merge)
		}
		t.AppendSeparator()
	}
	t.Render()
}

// scenarioLabel is the picker line for one scenario.
func scenarioLabel(sc scenario.Scenario) string {
	parts := make([]string, 0, len(sc.Tiers))
	for _, pt := range sc.Tiers {
		if pt.Active() {
			parts = append(parts, fmt.Sprintf("%s %s", pt.Name, formatMoney(pt.GrossPrice)))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, cost.NoTicketsLabel)
	}
	return fmt.Sprintf("%s sponsorship: %s", formatMoney(sc.SponsorAllocation), strings.Join(parts, ", "))
}

func printCommitted(w io.Writer, ev ledger.CommittedEvent) {
	fmt.Fprintf(w, "%s %s with %s sponsorship\n", okStyle.Render("Committed"), ev.Name, formatMoney(ev.SponsorshipAllocated))
	for _, tl := range ev.Tickets {
		fmt.Fprintf(w, "  %-8s %10s x %d\n", tl.Type, formatMoney(tl.Price), tl.Sold)
	}
	fmt.Fprintf(w, "Remaining budget: %s\n", formatMoney(ev.BudgetAfterCommit))
}

func printLedger(w io.Writer, total, remaining float64, events []ledger.CommittedEvent) {
	fmt.Fprintln(w, titleStyle.Render("Committed Events"))
	if len(events) == 0 {
		fmt.Fprintln(w, faintStyle.Render("No events committed."))
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Event", "Sponsorship", "Merch", "Tickets", "Attendees", "Fixed Costs", "Budget After"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
			{Number: 7, Align: text.AlignRight},
		})
		for _, ev := range events {
			t.AppendRow(table.Row{
				ev.Name,
				formatMoney(ev.SponsorshipAllocated),
				ev.MerchMode.Short(),
				formatTickets(ev.Tickets),
				ev.TotalAttendees,
				formatMoney(ev.FixedCosts),
				formatMoney(ev.BudgetAfterCommit),
			})
		}
		t.Render()
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Annual budget:     %s\n", formatMoney(total))
	fmt.Fprintf(w, "  Remaining budget:  %s\n", formatBalance(remaining))
}

func printCostReport(w io.Writer, r *cost.Report) {
	fmt.Fprintln(w, titleStyle.Render("Event Costs"))
	fmt.Fprintln(w, "===========")
	fmt.Fprintln(w)

	if len(r.Events) == 0 {
		fmt.Fprintln(w, faintStyle.Render("No events committed."))
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Event", "Fixed", "Catering", "Merch", "Total Cost", "Revenue", "Sponsorship", "Balance"})
		configs := make([]table.ColumnConfig, 0, 7)
		for n := 2; n <= 8; n++ {
			configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
		}
		t.SetColumnConfigs(configs)
		for _, b := range r.Events {
			t.AppendRow(table.Row{
				b.Name,
				formatMoney(b.FixedCosts),
				formatMoney(b.Catering),
				formatMoney(b.Merch),
				formatMoney(b.Total),
				formatMoney(b.GrossRevenue),
				formatMoney(b.Sponsorship),
				formatBalance(b.Balance),
			})
		}
		t.Render()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintln(w, "-------")
	fmt.Fprintf(w, "  Events committed:    %d\n", r.Summary.EventCount)
	fmt.Fprintf(w, "  Annual budget:       %s\n", formatMoney(r.Summary.AnnualBudget))
	fmt.Fprintf(w, "  Total sponsorship:   %s (%.1f%%)\n", formatMoney(r.Summary.TotalSponsorship), r.Summary.BudgetUsedFraction*100)
	fmt.Fprintf(w, "  Ticket revenue:      %s\n", formatMoney(r.Summary.GrossRevenue))
	fmt.Fprintf(w, "  Event costs:         %s\n", formatMoney(r.Summary.EventCosts))
	fmt.Fprintf(w, "  Remaining budget:    %s\n", formatBalance(r.Summary.RemainingBudget))
}

func printQuote(w io.Writer, q pricing.QuoteResult) {
	fmt.Fprintf(w, "  Variable cost per ticket:  %s\n", formatMoney(q.VariableCost))
	fmt.Fprintf(w, "  Break-even net price:      %s\n", formatMoney(q.NetPrice))
	fmt.Fprintf(w, "  Price with platform fee:   %s\n", titleStyle.Render(formatMoney(q.GrossPrice)))
}

// formatMoney renders an amount to cents. Undefined prices render as the
// no-tickets label and infinite ones as unpriceable.
func formatMoney(v float64) string {
	switch {
	case math.IsNaN(v):
		return cost.NoTicketsLabel
	case !pricing.Finite(v):
		return "unpriceable"
	case v < 0:
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

// formatBalance highlights negative amounts.
func formatBalance(v float64) string {
	if v < 0 {
		return badStyle.Render(formatMoney(v))
	}
	return formatMoney(v)
}

func formatCap(tooExpensive *bool) string {
	switch {
	case tooExpensive == nil:
		return ""
	case *tooExpensive:
		return badStyle.Render("over cap")
	}
	return okStyle.Render("ok")
}

func formatTickets(lines []ledger.TicketLine) string {
	if len(lines) == 0 {
		return cost.NoTicketsLabel
	}
	parts := make([]string, 0, len(lines))
	for _, tl := range lines {
		parts = append(parts, fmt.Sprintf("%s %s x %d", tl.Type, formatMoney(tl.Price), tl.Sold))
	}
	return strings.Join(parts, "\n")
}
