package pricing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
)

// Notes attached to an allocation that could not be priced.
const (
	NoteZeroAttendees = "zero overall attendees"
	NoteNoTickets     = "no tickets to price"
)

// Costs are the event-level inputs shared by every tier.
type Costs struct {
	FixedCosts       float64
	Sponsorship      float64
	CateringCost     float64
	RefundRate       float64
	PlatformFeeRate  float64
	PriceIncreaseCap float64
}

// PricedTier is a tier with its apportioned costs and derived prices.
// Prices are NaN for tiers with no sales.
type PricedTier struct {
	spec.TierSpec
	VariableCost float64 `json:"variable_cost"`
	GapShare     float64 `json:"gap_share"`
	NetPrice     float64 `json:"net_price"`
	GrossPrice   float64 `json:"gross_price"`
	// TooExpensive is nil when there is no last-year baseline or no finite price.
	TooExpensive *bool `json:"too_expensive,omitempty"`
}

// MarshalJSON writes undefined and infinite prices as null with an
// unpriceable flag, since JSON has no NaN or Inf.
func (t PricedTier) MarshalJSON() ([]byte, error) {
	type wire struct {
		spec.TierSpec
		VariableCost float64  `json:"variable_cost"`
		GapShare     float64  `json:"gap_share"`
		NetPrice     *float64 `json:"net_price"`
		GrossPrice   *float64 `json:"gross_price"`
		Unpriceable  bool     `json:"unpriceable,omitempty"`
		TooExpensive *bool    `json:"too_expensive,omitempty"`
	}
	w := wire{
		TierSpec:     t.TierSpec,
		VariableCost: t.VariableCost,
		GapShare:     t.GapShare,
		TooExpensive: t.TooExpensive,
	}
	if Finite(t.NetPrice) {
		w.NetPrice = &t.NetPrice
	}
	if Finite(t.GrossPrice) {
		w.GrossPrice = &t.GrossPrice
	}
	w.Unpriceable = t.Sold > 0 && w.GrossPrice == nil
	return json.Marshal(w)
}

// Active reports whether the tier takes part in cost apportionment.
func (t PricedTier) Active() bool {
	return t.Sold > 0
}

// Allocation is the result of running the tier allocator for one
// sponsorship amount.
type Allocation struct {
	Tiers           []PricedTier `json:"tiers"`
	Headcount       int          `json:"headcount"`
	CateringPerHead float64      `json:"catering_per_head"`
	GapTotal        float64      `json:"gap_total"`
	// InputError is set when the event configuration cannot produce tiers.
	InputError error `json:"-"`
	// Note explains why nothing was priced; empty when pricing ran.
	Note string `json:"note,omitempty"`
}

// Priced reports whether prices were derived.
func (a Allocation) Priced() bool {
	return a.Note == "" && a.InputError == nil
}

// CostsFor extracts the shared cost inputs of cfg at the given sponsorship.
func CostsFor(cfg spec.EventConfig, sponsorship float64) Costs {
	return Costs{
		FixedCosts:       cfg.FixedCosts,
		Sponsorship:      sponsorship,
		CateringCost:     cfg.CateringCost,
		RefundRate:       cfg.RefundRate,
		PlatformFeeRate:  cfg.PlatformFeeRate,
		PriceIncreaseCap: cfg.PriceIncreaseCap,
	}
}

// Allocate splits cfg's attendance into tiers by merch mode and prices them
// at the given sponsorship.
func Allocate(cfg spec.EventConfig, sponsorship float64) Allocation {
	costs := CostsFor(cfg, sponsorship)
	alloc := Allocation{GapTotal: costs.FixedCosts - costs.Sponsorship}

	tiers, err := cfg.MerchMode.Tiers(cfg)
	if err != nil {
		alloc.InputError = err
		alloc.Note = inputNote(err)
		return alloc
	}

	alloc.Headcount = headcount(tiers)
	switch {
	case cfg.TotalAttendees == 0:
		alloc.Note = NoteZeroAttendees
	case alloc.Headcount == 0:
		alloc.Note = NoteNoTickets
	}
	if alloc.Note != "" {
		alloc.Tiers = unpriced(tiers)
		return alloc
	}

	alloc.Tiers = PriceTiers(tiers, costs)
	alloc.CateringPerHead = costs.CateringCost / float64(alloc.Headcount)
	return alloc
}

// PriceTiers apportions catering and the sponsorship-adjusted gap across an
// arbitrary tier list by headcount share, then prices each tier.
func PriceTiers(tiers []spec.TierSpec, c Costs) []PricedTier {
	h := headcount(tiers)
	cateringPerHead := 0.0
	if h > 0 {
		cateringPerHead = c.CateringCost / float64(h)
	}
	gap := c.FixedCosts - c.Sponsorship

	out := make([]PricedTier, 0, len(tiers))
	for _, t := range tiers {
		pt := PricedTier{
			TierSpec:   t,
			NetPrice:   Undefined,
			GrossPrice: Undefined,
		}
		if t.Sold <= 0 || h == 0 {
			out = append(out, pt)
			continue
		}
		pt.VariableCost = cateringPerHead + t.MerchCost
		pt.GapShare = gap * float64(t.Sold) / float64(h)
		pt.NetPrice, pt.GrossPrice = Price(pt.VariableCost, pt.GapShare, t.Sold, c.RefundRate, c.PlatformFeeRate)
		pt.TooExpensive = tooExpensive(pt.GrossPrice, t.LastYearPrice, c.PriceIncreaseCap)
		out = append(out, pt)
	}
	return out
}

func tooExpensive(gross float64, lastYear *float64, increaseCap float64) *bool {
	if lastYear == nil || !Finite(gross) {
		return nil
	}
	v := gross > *lastYear+increaseCap
	return &v
}

// headcount sums sold over active tiers.
func headcount(tiers []spec.TierSpec) int {
	h := 0
	for _, t := range tiers {
		if t.Sold > 0 {
			h += t.Sold
		}
	}
	return h
}

func unpriced(tiers []spec.TierSpec) []PricedTier {
	out := make([]PricedTier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, PricedTier{TierSpec: t, NetPrice: Undefined, GrossPrice: Undefined})
	}
	return out
}

func inputNote(err error) string {
	switch {
	case errors.Is(err, spec.ErrMerchExceedsAttendees):
		return "input error: merch tickets exceed total attendees"
	case errors.Is(err, spec.ErrNegativeMerch):
		return "input error: negative merch ticket count"
	case errors.Is(err, spec.ErrNegativeRegular):
		return "input error: negative regular ticket count"
	}
	return fmt.Sprintf("input error: %v", err)
}
