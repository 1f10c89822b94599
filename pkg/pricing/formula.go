// Package pricing derives break-even ticket prices from event costs.
//
// For a tier selling n tickets with per-head variable cost v and a share g of
// the fixed-cost gap left after sponsorship:
//
//	net   = v + g / ((1 - refundRate) * n)
//	gross = net / (1 - platformFeeRate)
//
// A tier with no sales has no price (NaN). A zero refund or fee complement
// yields +Inf rather than a division fault.
package pricing

import "math"

// Undefined is the price of a tier with nothing to price.
var Undefined = math.NaN()

// Price computes the net and gross per-ticket price of one tier.
func Price(variableCost, gapShare float64, sold int, refundRate, platformFeeRate float64) (net, gross float64) {
	if sold <= 0 {
		return Undefined, Undefined
	}

	denom := (1 - refundRate) * float64(sold)
	if denom == 0 {
		net = math.Inf(1)
	} else {
		net = variableCost + gapShare/denom
	}

	feeComplement := 1 - platformFeeRate
	if feeComplement == 0 {
		return net, math.Inf(1)
	}
	return net, net / feeComplement
}

// Finite reports whether p is a usable price.
func Finite(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0)
}
