// Package scenario sweeps an event over candidate sponsorship allocations
// without touching the ledger.
package scenario

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/TheNoZER0/ticketcalculator/pkg/pricing"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
	"github.com/TheNoZER0/ticketcalculator/pkg/validation"
)

// NoteOverBudget marks a candidate larger than the remaining annual budget.
const NoteOverBudget = "exceeds remaining annual budget"

// BudgetSource reports the sponsorship budget still available.
type BudgetSource interface {
	Remaining() float64
}

// Status classifies the outcome of one evaluation.
type Status string

const (
	StatusPriced        Status = "priced"
	StatusOverBudget    Status = "over_budget"
	StatusInputError    Status = "input_error"
	StatusZeroAttendees Status = "zero_attendees"
	StatusNoTickets     Status = "no_tickets"
)

// Scenario is one evaluation of an event at one sponsorship allocation.
type Scenario struct {
	Event                    spec.EventConfig     `json:"event"`
	SponsorAllocation        float64              `json:"sponsor_allocation"`
	PotentialRemainingBudget float64              `json:"potential_remaining_budget"`
	CateringPerHead          float64              `json:"catering_per_head"`
	Tiers                    []pricing.PricedTier `json:"tiers"`
	Notes                    []string             `json:"notes,omitempty"`
	Status                   Status               `json:"status"`
}

// Committable reports whether the scenario may be recorded in a ledger:
// every tier with sales has a finite price, or there was nothing to sell.
func (s Scenario) Committable() bool {
	switch s.Status {
	case StatusZeroAttendees, StatusNoTickets:
		return true
	case StatusPriced:
		for _, t := range s.Tiers {
			if t.Active() && !pricing.Finite(t.GrossPrice) {
				return false
			}
		}
		return true
	}
	return false
}

// ZeroSales reports whether the scenario explains that no tickets are sold.
func (s Scenario) ZeroSales() bool {
	return s.Status == StatusZeroAttendees || s.Status == StatusNoTickets
}

// Tier returns the named tier, or nil.
func (s Scenario) Tier(name string) *pricing.PricedTier {
	for i := range s.Tiers {
		if s.Tiers[i].Name == name {
			return &s.Tiers[i]
		}
	}
	return nil
}

// TooExpensive reports whether any priced tier breaches its price cap.
func (s Scenario) TooExpensive() bool {
	for _, t := range s.Tiers {
		if t.TooExpensive != nil && *t.TooExpensive {
			return true
		}
	}
	return false
}

// Evaluate prices cfg at one allocation against the given remaining budget.
func Evaluate(cfg spec.EventConfig, allocation, remaining float64) Scenario {
	sc := Scenario{
		Event:                    cfg,
		SponsorAllocation:        allocation,
		PotentialRemainingBudget: remaining - allocation,
	}
	if allocation > remaining {
		sc.Status = StatusOverBudget
		sc.Notes = []string{NoteOverBudget}
		return sc
	}

	alloc := pricing.Allocate(cfg, allocation)
	sc.Tiers = alloc.Tiers
	sc.CateringPerHead = alloc.CateringPerHead
	switch {
	case alloc.InputError != nil:
		sc.Status = StatusInputError
	case alloc.Note == pricing.NoteZeroAttendees:
		sc.Status = StatusZeroAttendees
	case alloc.Note == pricing.NoteNoTickets:
		sc.Status = StatusNoTickets
	default:
		sc.Status = StatusPriced
	}
	if alloc.Note != "" {
		sc.Notes = append(sc.Notes, alloc.Note)
	}
	if sc.TooExpensive() {
		sc.Notes = append(sc.Notes, "price exceeds last year plus cap")
	}
	return sc
}

// Sweep evaluates cfg at every candidate allocation in the given order.
// Negative and NaN candidates are omitted. The budget source is only read.
func Sweep(budget BudgetSource, cfg spec.EventConfig, allocations []float64) []Scenario {
	remaining := budget.Remaining()
	out := make([]Scenario, 0, len(allocations))
	for _, a := range allocations {
		if a < 0 || math.IsNaN(a) {
			continue
		}
		out = append(out, Evaluate(cfg, a, remaining))
	}
	return out
}

// ParseAllocations converts candidate strings to amounts. Entries that are
// blank, non-numeric, non-finite or negative are dropped with a warning.
func ParseAllocations(raw []string) ([]float64, *validation.Report) {
	report := validation.NewReport()
	out := make([]float64, 0, len(raw))
	for i, s := range raw {
		path := fmt.Sprintf("allocations[%d]", i)
		v := strings.TrimSpace(s)
		if v == "" {
			report.AddWarning(validation.Result{
				Level:    validation.LevelScenario,
				Message:  "blank allocation skipped",
				SpecPath: path,
			})
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimPrefix(v, "$"), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			report.AddWarning(validation.Result{
				Level:       validation.LevelScenario,
				Message:     fmt.Sprintf("%q is not a valid amount", s),
				SpecPath:    path,
				ActualValue: s,
				Expected:    "a finite number",
			})
			continue
		}
		if f < 0 {
			report.AddWarning(validation.Result{
				Level:       validation.LevelScenario,
				Message:     fmt.Sprintf("negative allocation %.2f skipped", f),
				SpecPath:    path,
				ActualValue: f,
				Expected:    ">= 0",
			})
			continue
		}
		out = append(out, f)
	}
	return out, report
}

// SweepInputs parses raw candidates and sweeps the valid ones.
func SweepInputs(budget BudgetSource, cfg spec.EventConfig, raw []string) ([]Scenario, *validation.Report) {
	allocations, report := ParseAllocations(raw)
	return Sweep(budget, cfg, allocations), report
}
