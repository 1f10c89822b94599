package pricing

import (
	"errors"

	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
)

// ErrInvalidHeadcount is returned by Quote for a non-positive headcount.
var ErrInvalidHeadcount = errors.New("headcount must be positive")

// QuoteInput describes a single-price event.
type QuoteInput struct {
	Headcount       int
	FixedCosts      float64
	Sponsorship     float64
	CateringCost    float64
	MerchCost       float64
	RefundRate      float64
	PlatformFeeRate float64
}

// QuoteResult is the break-even price of a single-price event.
type QuoteResult struct {
	VariableCost float64 `json:"variable_cost"`
	NetPrice     float64 `json:"net_price"`
	GrossPrice   float64 `json:"gross_price"`
}

// Quote prices an event sold as one tier, where every attendee pays the same
// price and carries the same merch cost.
func Quote(in QuoteInput) (QuoteResult, error) {
	if in.Headcount <= 0 {
		return QuoteResult{}, ErrInvalidHeadcount
	}
	tiers := PriceTiers([]spec.TierSpec{{Name: spec.TierRegular, Sold: in.Headcount, MerchCost: in.MerchCost}}, Costs{
		FixedCosts:      in.FixedCosts,
		Sponsorship:     in.Sponsorship,
		CateringCost:    in.CateringCost,
		RefundRate:      in.RefundRate,
		PlatformFeeRate: in.PlatformFeeRate,
	})
	t := tiers[0]
	return QuoteResult{VariableCost: t.VariableCost, NetPrice: t.NetPrice, GrossPrice: t.GrossPrice}, nil
}
