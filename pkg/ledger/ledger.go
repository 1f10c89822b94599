// Package ledger tracks the annual sponsorship budget and the events it has
// been committed to.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/TheNoZER0/ticketcalculator/pkg/pricing"
	"github.com/TheNoZER0/ticketcalculator/pkg/scenario"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
	"github.com/TheNoZER0/ticketcalculator/pkg/validation"
)

var (
	// ErrBudgetExceeded is returned when a commit would overdraw the budget.
	ErrBudgetExceeded = errors.New("allocation exceeds remaining budget")
	// ErrNoValidPrice is returned when a tier with expected sales has no
	// finite price.
	ErrNoValidPrice = errors.New("no valid ticket price")
	// ErrInputError is returned when the scenario carries an input error.
	ErrInputError = errors.New("scenario has an input error")
)

// TicketLine is one resolved ticket type at commit time.
type TicketLine struct {
	Type  string  `json:"type"`
	Price float64 `json:"price"`
	Sold  int     `json:"sold"`
}

// CommittedEvent is an accepted scenario. Records are append-only.
type CommittedEvent struct {
	Name                 string         `json:"name"`
	SponsorshipAllocated float64        `json:"sponsorship_allocated"`
	MerchMode            spec.MerchMode `json:"merch_mode"`
	Tickets              []TicketLine   `json:"tickets"`
	TotalAttendees       int            `json:"total_attendees"`
	FixedCosts           float64        `json:"fixed_costs"`
	CateringCost         float64        `json:"catering_cost"`
	MerchUnitCost        float64        `json:"merch_unit_cost"`
	ExpectedMerchSold    int            `json:"expected_merch_sold"`
	LastYearRegularPrice *float64       `json:"last_year_regular_price,omitempty"`
	LastYearMerchPrice   *float64       `json:"last_year_merch_price,omitempty"`
	BudgetAfterCommit    float64        `json:"budget_after_commit"`
}

// Ledger is the sponsorship budget of one planning session. It is safe for
// concurrent use; Commit checks and deducts under one lock.
type Ledger struct {
	mu        sync.Mutex
	total     float64
	remaining float64
	events    []CommittedEvent
}

// New creates an empty ledger with the given annual budget.
func New(total float64) *Ledger {
	return &Ledger{total: total, remaining: total}
}

// Total returns the annual budget.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Remaining returns the budget not yet committed.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// Events returns a copy of the committed events in commit order.
func (l *Ledger) Events() []CommittedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneEvents(l.events)
}

// ExportAll returns every committed event in commit order.
func (l *Ledger) ExportAll() []CommittedEvent {
	return l.Events()
}

// Reinitialize sets a new annual budget and clears all commitments.
func (l *Ledger) Reinitialize(total float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = total
	l.remaining = total
	l.events = nil
}

// Commit records sc at the chosen allocation. When the chosen amount differs
// from the one sc was evaluated at, the event is re-priced at the chosen
// amount so the stored ticket prices match the stored sponsorship.
// On error the ledger is unchanged.
func (l *Ledger) Commit(sc scenario.Scenario, chosen float64) (CommittedEvent, error) {
	if sc.Status == scenario.StatusInputError {
		return CommittedEvent{}, fmt.Errorf("%s: %w", sc.Event.Name, ErrInputError)
	}
	if sc.Status == scenario.StatusOverBudget {
		return CommittedEvent{}, fmt.Errorf("%s: %w", sc.Event.Name, ErrBudgetExceeded)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if chosen < 0 || math.IsNaN(chosen) || chosen > l.remaining {
		return CommittedEvent{}, fmt.Errorf("%s: %.2f of %.2f remaining: %w",
			sc.Event.Name, chosen, l.remaining, ErrBudgetExceeded)
	}
	if chosen != sc.SponsorAllocation {
		sc = scenario.Evaluate(sc.Event, chosen, l.remaining)
	}
	tickets, err := ticketLines(sc)
	if err != nil {
		return CommittedEvent{}, fmt.Errorf("%s: %w", sc.Event.Name, err)
	}

	l.remaining -= chosen
	cfg := sc.Event
	ev := CommittedEvent{
		Name:                 cfg.Name,
		SponsorshipAllocated: chosen,
		MerchMode:            cfg.MerchMode,
		Tickets:              tickets,
		TotalAttendees:       cfg.TotalAttendees,
		FixedCosts:           cfg.FixedCosts,
		CateringCost:         cfg.CateringCost,
		MerchUnitCost:        cfg.MerchUnitCost,
		ExpectedMerchSold:    cfg.ExpectedMerchSold,
		LastYearRegularPrice: cloneFloat(cfg.LastYearRegularPrice),
		LastYearMerchPrice:   cloneFloat(cfg.LastYearMerchPrice),
		BudgetAfterCommit:    l.remaining,
	}
	l.events = append(l.events, ev)
	return cloneEvent(ev), nil
}

// ticketLines resolves the sold tiers of sc into ticket lines.
func ticketLines(sc scenario.Scenario) ([]TicketLine, error) {
	lines := []TicketLine{}
	if sc.ZeroSales() {
		return lines, nil
	}
	for _, t := range sc.Tiers {
		if !t.Active() {
			continue
		}
		if !pricing.Finite(t.GrossPrice) {
			return nil, fmt.Errorf("%s tier (%d sold): %w", t.Name, t.Sold, ErrNoValidPrice)
		}
		lines = append(lines, TicketLine{Type: t.Name, Price: t.GrossPrice, Sold: t.Sold})
	}
	if len(lines) == 0 {
		return nil, ErrNoValidPrice
	}
	return lines, nil
}

// ImportAll replaces the ledger contents with records, deducting each
// allocation in order and rewriting the budget snapshots. Malformed
// allocations are treated as zero and reported.
func (l *Ledger) ImportAll(records []CommittedEvent) *validation.Report {
	report := validation.NewReport()

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.total
	events := make([]CommittedEvent, 0, len(records))
	for i, rec := range records {
		ev := cloneEvent(rec)
		a := ev.SponsorshipAllocated
		if math.IsNaN(a) || math.IsInf(a, 0) || a < 0 {
			report.AddWarning(validation.Result{
				Level:       validation.LevelImport,
				Message:     fmt.Sprintf("event %q: invalid sponsorship allocation, using 0", ev.Name),
				SpecPath:    fmt.Sprintf("records[%d].sponsorship_allocated", i),
				ActualValue: fmt.Sprint(a),
			})
			ev.SponsorshipAllocated = 0
		}
		remaining -= ev.SponsorshipAllocated
		ev.BudgetAfterCommit = remaining
		events = append(events, ev)
	}
	if remaining < 0 {
		report.AddWarning(validation.Result{
			Level:       validation.LevelImport,
			Message:     fmt.Sprintf("imported allocations exceed the annual budget by %.2f", -remaining),
			SpecPath:    "records",
			ActualValue: remaining,
		})
	}

	l.events = events
	l.remaining = remaining
	return report
}

func cloneEvents(in []CommittedEvent) []CommittedEvent {
	out := make([]CommittedEvent, len(in))
	for i, ev := range in {
		out[i] = cloneEvent(ev)
	}
	return out
}

func cloneEvent(ev CommittedEvent) CommittedEvent {
	ev.Tickets = append([]TicketLine{}, ev.Tickets...)
	ev.LastYearRegularPrice = cloneFloat(ev.LastYearRegularPrice)
	ev.LastYearMerchPrice = cloneFloat(ev.LastYearMerchPrice)
	return ev
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
