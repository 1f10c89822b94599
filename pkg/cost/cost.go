// Package cost summarizes committed events: per-ticket rows, per-event cost
// breakdowns and totals against the annual budget.
package cost

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
)

// Row is one ticket line of a committed event. Events without ticket lines
// get a single row typed NoTicketsLabel with a nil price.
type Row struct {
	Name              string         `json:"name"`
	TicketType        string         `json:"ticket_type"`
	Price             *float64       `json:"price"`
	Sold              int            `json:"sold"`
	MerchOption       spec.MerchMode `json:"merch_option"`
	Sponsorship       float64        `json:"sponsorship_allocated"`
	TotalAttendees    int            `json:"total_attendees"`
	FixedCosts        float64        `json:"fixed_costs"`
	BudgetAfterCommit float64        `json:"budget_after_commit"`
}

// Breakdown itemizes the costs of one event against its funding.
type Breakdown struct {
	Name         string  `json:"name"`
	FixedCosts   float64 `json:"fixed_costs"`
	Catering     float64 `json:"catering"`
	Merch        float64 `json:"merch"`
	Total        float64 `json:"total"`
	GrossRevenue float64 `json:"gross_revenue"`
	Sponsorship  float64 `json:"sponsorship"`
	// Balance is revenue plus sponsorship minus costs, before fees and refunds.
	Balance float64 `json:"balance"`
}

// Report is the complete summary output.
type Report struct {
	Rows   []Row       `json:"rows"`
	Events []Breakdown `json:"events"`

	Summary struct {
		EventCount         int     `json:"event_count"`
		AnnualBudget       float64 `json:"annual_budget"`
		TotalSponsorship   float64 `json:"total_sponsorship"`
		GrossRevenue       float64 `json:"gross_revenue"`
		EventCosts         float64 `json:"event_costs"`
		BudgetUsedFraction float64 `json:"budget_used_fraction"`
		RemainingBudget    float64 `json:"remaining_budget"`
	} `json:"summary"`
}

// Summarize builds the summary of events against annualBudget. Amounts are
// accumulated exactly and rounded to cents.
func Summarize(events []ledger.CommittedEvent, annualBudget float64) *Report {
	report := &Report{Rows: []Row{}, Events: []Breakdown{}}

	sponsorship := decimal.Zero
	revenue := decimal.Zero
	costs := decimal.Zero
	for _, ev := range events {
		report.Rows = append(report.Rows, rows(ev)...)

		b := breakdown(ev)
		report.Events = append(report.Events, b.rounded())

		sponsorship = sponsorship.Add(dec(ev.SponsorshipAllocated))
		revenue = revenue.Add(b.revenue)
		costs = costs.Add(b.total)
	}

	budget := dec(annualBudget)
	report.Summary.EventCount = len(events)
	report.Summary.AnnualBudget = round(budget)
	report.Summary.TotalSponsorship = round(sponsorship)
	report.Summary.GrossRevenue = round(revenue)
	report.Summary.EventCosts = round(costs)
	report.Summary.RemainingBudget = round(budget.Sub(sponsorship))
	if budget.IsPositive() {
		report.Summary.BudgetUsedFraction = sponsorship.Div(budget).Round(4).InexactFloat64()
	}
	return report
}

func rows(ev ledger.CommittedEvent) []Row {
	base := Row{
		Name:              ev.Name,
		MerchOption:       ev.MerchMode,
		Sponsorship:       round(dec(ev.SponsorshipAllocated)),
		TotalAttendees:    ev.TotalAttendees,
		FixedCosts:        round(dec(ev.FixedCosts)),
		BudgetAfterCommit: round(dec(ev.BudgetAfterCommit)),
	}
	if len(ev.Tickets) == 0 {
		base.TicketType = NoTicketsLabel
		return []Row{base}
	}
	out := make([]Row, 0, len(ev.Tickets))
	for _, t := range ev.Tickets {
		r := base
		r.TicketType = t.Type
		if finite(t.Price) {
			p := round(dec(t.Price))
			r.Price = &p
		}
		r.Sold = t.Sold
		out = append(out, r)
	}
	return out
}

// eventCosts holds exact amounts until the report is rounded.
type eventCosts struct {
	name        string
	fixed       decimal.Decimal
	catering    decimal.Decimal
	merch       decimal.Decimal
	total       decimal.Decimal
	revenue     decimal.Decimal
	sponsorship decimal.Decimal
}

func breakdown(ev ledger.CommittedEvent) eventCosts {
	c := eventCosts{
		name:        ev.Name,
		fixed:       dec(ev.FixedCosts),
		catering:    dec(ev.CateringCost),
		merch:       dec(ev.MerchUnitCost).Mul(decimal.NewFromInt(int64(merchUnits(ev)))),
		revenue:     decimal.Zero,
		sponsorship: dec(ev.SponsorshipAllocated),
	}
	c.total = c.fixed.Add(c.catering).Add(c.merch)
	for _, t := range ev.Tickets {
		c.revenue = c.revenue.Add(dec(t.Price).Mul(decimal.NewFromInt(int64(t.Sold))))
	}
	return c
}

func (c eventCosts) rounded() Breakdown {
	return Breakdown{
		Name:         c.name,
		FixedCosts:   round(c.fixed),
		Catering:     round(c.catering),
		Merch:        round(c.merch),
		Total:        round(c.total),
		GrossRevenue: round(c.revenue),
		Sponsorship:  round(c.sponsorship),
		Balance:      round(c.revenue.Add(c.sponsorship).Sub(c.total)),
	}
}

// merchUnits is the number of merch items the event pays for.
func merchUnits(ev ledger.CommittedEvent) int {
	switch ev.MerchMode {
	case spec.BundledMerch:
		return ev.TotalAttendees
	case spec.OptionalMerch:
		return ev.ExpectedMerchSold
	}
	return 0
}

// dec converts f, mapping non-finite values to zero.
func dec(f float64) decimal.Decimal {
	if !finite(f) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func round(d decimal.Decimal) float64 {
	return d.Round(CentPlaces).InexactFloat64()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
