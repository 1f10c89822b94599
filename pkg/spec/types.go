package spec

// Fallback values applied when a plan file omits them.
const (
	DefaultAnnualBudget     = 19000.0
	DefaultRefundRate       = 0.03
	DefaultPlatformFeeRate  = 0.04
	DefaultPriceIncreaseCap = 5.0
	DefaultMerchUnitCost    = 20.0
)

// PlanSpec is the top-level planning file for one sponsorship year.
type PlanSpec struct {
	SpecVersion  string     `yaml:"spec_version" json:"spec_version"`
	AnnualBudget *float64   `yaml:"annual_budget" json:"annual_budget"`
	Defaults     Defaults   `yaml:"defaults" json:"defaults"`
	Events       []EventDef `yaml:"events" json:"events"`
}

// Defaults are the plan-wide rates each event inherits unless it overrides them.
type Defaults struct {
	RefundRate       *float64 `yaml:"refund_rate" json:"refund_rate"`
	PlatformFeeRate  *float64 `yaml:"platform_fee_rate" json:"platform_fee_rate"`
	PriceIncreaseCap *float64 `yaml:"price_increase_cap" json:"price_increase_cap"`
	MerchUnitCost    *float64 `yaml:"merch_unit_cost" json:"merch_unit_cost"`
}

// EventDef is one event as written in the plan file. Pointer fields are
// optional and fall back to the plan Defaults.
type EventDef struct {
	Name                 string    `yaml:"name" json:"name"`
	FixedCosts           float64   `yaml:"fixed_costs" json:"fixed_costs"`
	CateringCost         float64   `yaml:"catering_cost" json:"catering_cost"`
	TotalAttendees       int       `yaml:"total_attendees" json:"total_attendees"`
	MerchMode            MerchMode `yaml:"merch_mode" json:"merch_mode"`
	MerchUnitCost        *float64  `yaml:"merch_unit_cost" json:"merch_unit_cost,omitempty"`
	ExpectedMerchSold    int       `yaml:"expected_merch_sold" json:"expected_merch_sold"`
	LastYearRegularPrice *float64  `yaml:"last_year_regular_price" json:"last_year_regular_price,omitempty"`
	LastYearMerchPrice   *float64  `yaml:"last_year_merch_price" json:"last_year_merch_price,omitempty"`
	RefundRate           *float64  `yaml:"refund_rate" json:"refund_rate,omitempty"`
	PlatformFeeRate      *float64  `yaml:"platform_fee_rate" json:"platform_fee_rate,omitempty"`
	PriceIncreaseCap     *float64  `yaml:"price_increase_cap" json:"price_increase_cap,omitempty"`
	Allocations          []string  `yaml:"allocations" json:"allocations,omitempty"`
}

// EventConfig is the resolved, immutable input to one pricing evaluation.
type EventConfig struct {
	Name                 string    `json:"name"`
	FixedCosts           float64   `json:"fixed_costs"`
	CateringCost         float64   `json:"catering_cost"`
	TotalAttendees       int       `json:"total_attendees"`
	MerchMode            MerchMode `json:"merch_mode"`
	MerchUnitCost        float64   `json:"merch_unit_cost"`
	ExpectedMerchSold    int       `json:"expected_merch_sold"`
	LastYearRegularPrice *float64  `json:"last_year_regular_price,omitempty"`
	LastYearMerchPrice   *float64  `json:"last_year_merch_price,omitempty"`
	RefundRate           float64   `json:"refund_rate"`
	PlatformFeeRate      float64   `json:"platform_fee_rate"`
	PriceIncreaseCap     float64   `json:"price_increase_cap"`
}

// TierSpec is one pricing tier within an event.
type TierSpec struct {
	Name          string   `json:"name"`
	Sold          int      `json:"sold"`
	MerchCost     float64  `json:"merch_cost"`
	LastYearPrice *float64 `json:"last_year_price,omitempty"`
}

// Budget returns the plan's annual sponsorship budget, or the default when unset.
func (p *PlanSpec) Budget() float64 {
	if p.AnnualBudget == nil {
		return DefaultAnnualBudget
	}
	return *p.AnnualBudget
}

// EventByName returns the event definition with the given name, or nil if not found.
func (p *PlanSpec) EventByName(name string) *EventDef {
	for i := range p.Events {
		if p.Events[i].Name == name {
			return &p.Events[i]
		}
	}
	return nil
}

// Config resolves an event definition against plan defaults.
func (e EventDef) Config(d Defaults) EventConfig {
	mode := e.MerchMode
	if mode == "" {
		mode = NoMerch
	}
	return EventConfig{
		Name:                 e.Name,
		FixedCosts:           e.FixedCosts,
		CateringCost:         e.CateringCost,
		TotalAttendees:       e.TotalAttendees,
		MerchMode:            mode,
		MerchUnitCost:        pick(e.MerchUnitCost, d.MerchUnitCost, DefaultMerchUnitCost),
		ExpectedMerchSold:    e.ExpectedMerchSold,
		LastYearRegularPrice: e.LastYearRegularPrice,
		LastYearMerchPrice:   e.LastYearMerchPrice,
		RefundRate:           pick(e.RefundRate, d.RefundRate, DefaultRefundRate),
		PlatformFeeRate:      pick(e.PlatformFeeRate, d.PlatformFeeRate, DefaultPlatformFeeRate),
		PriceIncreaseCap:     pick(e.PriceIncreaseCap, d.PriceIncreaseCap, DefaultPriceIncreaseCap),
	}
}

// Float returns a pointer to v, for optional fields.
func Float(v float64) *float64 {
	return &v
}

func pick(own, plan *float64, fallback float64) float64 {
	if own != nil {
		return *own
	}
	if plan != nil {
		return *plan
	}
	return fallback
}
