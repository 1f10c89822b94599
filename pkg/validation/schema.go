package validation

import (
	"fmt"
	"math"

	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
)

// ValidateSchema performs structural validation on a parsed plan.
// It checks inputs before any pricing is attempted.
func ValidateSchema(p *spec.PlanSpec) *Report {
	r := NewReport()

	validateBudget(p, r)
	validateDefaults(p.Defaults, r)
	validateEventNames(p, r)
	for i, ev := range p.Events {
		validateEvent(ev.Config(p.Defaults), fmt.Sprintf("events[%d]", i), r)
	}

	return r
}

// ValidateEvent checks a single resolved event, e.g. one submitted over HTTP.
func ValidateEvent(cfg spec.EventConfig) *Report {
	r := NewReport()
	if cfg.Name == "" {
		r.AddError(Result{
			Level:    LevelSchema,
			Message:  "event name is required",
			SpecPath: "event.name",
		})
	}
	validateEvent(cfg, "event", r)
	return r
}

func validateBudget(p *spec.PlanSpec, r *Report) {
	b := p.Budget()
	if b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "annual_budget must be a non-negative amount",
			SpecPath:    "annual_budget",
			ActualValue: b,
			Expected:    ">= 0",
		})
	}
	if p.AnnualBudget == nil {
		r.AddInfo(Result{
			Level:    LevelSchema,
			Message:  fmt.Sprintf("annual_budget not set; using %.2f", spec.DefaultAnnualBudget),
			SpecPath: "annual_budget",
		})
	}
}

func validateDefaults(d spec.Defaults, r *Report) {
	if d.RefundRate != nil {
		validateRate("defaults.refund_rate", *d.RefundRate, r)
	}
	if d.PlatformFeeRate != nil {
		validateRate("defaults.platform_fee_rate", *d.PlatformFeeRate, r)
	}
	if d.PriceIncreaseCap != nil && *d.PriceIncreaseCap < 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "defaults.price_increase_cap must be >= 0",
			SpecPath:    "defaults.price_increase_cap",
			ActualValue: *d.PriceIncreaseCap,
			Expected:    ">= 0",
		})
	}
	if d.MerchUnitCost != nil && *d.MerchUnitCost < 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "defaults.merch_unit_cost must be >= 0",
			SpecPath:    "defaults.merch_unit_cost",
			ActualValue: *d.MerchUnitCost,
			Expected:    ">= 0",
		})
	}
}

func validateEventNames(p *spec.PlanSpec, r *Report) {
	seen := make(map[string]int)
	for i, ev := range p.Events {
		path := fmt.Sprintf("events[%d].name", i)
		if ev.Name == "" {
			r.AddError(Result{
				Level:    LevelSchema,
				Message:  fmt.Sprintf("events[%d]: name is required", i),
				SpecPath: path,
			})
			continue
		}
		if first, dup := seen[ev.Name]; dup {
			r.AddError(Result{
				Level:        LevelSchema,
				Message:      fmt.Sprintf("duplicate event name %q", ev.Name),
				SpecPath:     path,
				ActualValue:  ev.Name,
				ConflictWith: fmt.Sprintf("events[%d].name", first),
				Suggestions:  []string{"Give each event in the plan a unique name"},
			})
			continue
		}
		seen[ev.Name] = i
	}
}

func validateEvent(cfg spec.EventConfig, path string, r *Report) {
	nonNegative := []struct {
		field string
		value float64
	}{
		{"fixed_costs", cfg.FixedCosts},
		{"catering_cost", cfg.CateringCost},
		{"merch_unit_cost", cfg.MerchUnitCost},
		{"price_increase_cap", cfg.PriceIncreaseCap},
	}
	for _, f := range nonNegative {
		if f.value < 0 || math.IsNaN(f.value) {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("%s.%s must be >= 0", path, f.field),
				SpecPath:    path + "." + f.field,
				ActualValue: f.value,
				Expected:    ">= 0",
			})
		}
	}

	if cfg.TotalAttendees < 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("%s.total_attendees must be >= 0", path),
			SpecPath:    path + ".total_attendees",
			ActualValue: cfg.TotalAttendees,
			Expected:    ">= 0",
		})
	}
	if cfg.ExpectedMerchSold < 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("%s.expected_merch_sold must be >= 0", path),
			SpecPath:    path + ".expected_merch_sold",
			ActualValue: cfg.ExpectedMerchSold,
			Expected:    ">= 0",
		})
	}

	validateRate(path+".refund_rate", cfg.RefundRate, r)
	validateRate(path+".platform_fee_rate", cfg.PlatformFeeRate, r)

	for _, ly := range []struct {
		field string
		value *float64
	}{
		{"last_year_regular_price", cfg.LastYearRegularPrice},
		{"last_year_merch_price", cfg.LastYearMerchPrice},
	} {
		if ly.value != nil && *ly.value < 0 {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("%s.%s must be >= 0", path, ly.field),
				SpecPath:    path + "." + ly.field,
				ActualValue: *ly.value,
				Expected:    ">= 0",
			})
		}
	}

	switch cfg.MerchMode {
	case spec.OptionalMerch:
		if cfg.ExpectedMerchSold > cfg.TotalAttendees {
			r.AddWarning(Result{
				Level:        LevelSchema,
				Message:      fmt.Sprintf("%s: expected merch sales (%d) exceed total attendees (%d); scenarios will report an input error", path, cfg.ExpectedMerchSold, cfg.TotalAttendees),
				SpecPath:     path + ".expected_merch_sold",
				ActualValue:  cfg.ExpectedMerchSold,
				Expected:     fmt.Sprintf("<= %d", cfg.TotalAttendees),
				ConflictWith: path + ".total_attendees",
			})
		}
	case spec.NoMerch:
		if cfg.ExpectedMerchSold > 0 {
			r.AddWarning(Result{
				Level:    LevelSchema,
				Message:  fmt.Sprintf("%s: expected_merch_sold is ignored without merch", path),
				SpecPath: path + ".expected_merch_sold",
			})
		}
	case spec.BundledMerch:
	default:
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("%s.merch_mode is not a known mode", path),
			SpecPath:    path + ".merch_mode",
			ActualValue: string(cfg.MerchMode),
			Expected:    "none, bundled or optional",
		})
	}

	if cfg.TotalAttendees == 0 {
		r.AddWarning(Result{
			Level:    LevelSchema,
			Message:  fmt.Sprintf("%s: zero overall attendees; no tickets will be priced", path),
			SpecPath: path + ".total_attendees",
		})
	}
}

// validateRate accepts [0,1). A rate of exactly 1 is allowed but prices become
// infinite, so it is flagged as a warning.
func validateRate(path string, v float64, r *Report) {
	switch {
	case v < 0 || v > 1 || math.IsNaN(v):
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("%s must be in [0, 1)", path),
			SpecPath:    path,
			ActualValue: v,
			Expected:    "[0, 1)",
		})
	case v == 1:
		r.AddWarning(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("%s is 1; ticket prices will be infinite", path),
			SpecPath:    path,
			ActualValue: v,
			Expected:    "< 1",
			Suggestions: []string{"Use a fractional rate such as 0.04 for 4%"},
		})
	}
}
