package spec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MerchMode selects how merchandise is sold alongside tickets. The string
// values are the labels written to the ledger CSV.
type MerchMode string

const (
	NoMerch       MerchMode = "No Merch"
	BundledMerch  MerchMode = "Bundled Merch (for all tickets)"
	OptionalMerch MerchMode = "Optional Merch Tickets (separate prices)"
)

// Tier names produced by the merch modes.
const (
	TierRegular        = "Regular"
	TierBundled        = "Bundled"
	TierMerchInclusive = "Merch-Inclusive"
)

// MerchModes lists every mode in display order.
var MerchModes = []MerchMode{NoMerch, BundledMerch, OptionalMerch}

// ErrMerchExceedsAttendees is returned by Tiers when optional merch sales
// cannot fit inside the overall attendance.
var ErrMerchExceedsAttendees = errors.New("expected merch sales exceed total attendees")

// ErrNegativeMerch is returned by Tiers when optional merch sales are negative.
var ErrNegativeMerch = errors.New("expected merch sales are negative")

// ErrNegativeRegular is returned by Tiers when the regular tier would be negative.
var ErrNegativeRegular = errors.New("regular ticket count is negative")

// ParseMerchMode accepts the full labels and the short forms none, bundled
// and optional (case-insensitive).
func ParseMerchMode(s string) (MerchMode, error) {
	v := strings.TrimSpace(s)
	for _, m := range MerchModes {
		if strings.EqualFold(v, string(m)) {
			return m, nil
		}
	}
	switch strings.ToLower(v) {
	case "", "none", "no", "no_merch":
		return NoMerch, nil
	case "bundled", "bundle", "bundled_merch":
		return BundledMerch, nil
	case "optional", "optional_merch":
		return OptionalMerch, nil
	}
	return "", fmt.Errorf("unknown merch mode %q", s)
}

// Valid reports whether m is one of the three known modes.
func (m MerchMode) Valid() bool {
	for _, known := range MerchModes {
		if m == known {
			return true
		}
	}
	return false
}

// Short returns the compact form used in plan files and tables.
func (m MerchMode) Short() string {
	switch m {
	case BundledMerch:
		return "bundled"
	case OptionalMerch:
		return "optional"
	default:
		return "none"
	}
}

// UnmarshalYAML lets plan files use either label form.
func (m *MerchMode) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseMerchMode(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = parsed
	return nil
}

// UnmarshalJSON accepts the same forms as ParseMerchMode.
func (m *MerchMode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseMerchMode(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Tiers builds the tiers this mode sells for cfg. Zero-sold tiers are still
// returned; callers decide whether a tier is active.
func (m MerchMode) Tiers(cfg EventConfig) ([]TierSpec, error) {
	total := cfg.TotalAttendees
	switch m {
	case BundledMerch:
		return []TierSpec{
			{Name: TierBundled, Sold: total, MerchCost: cfg.MerchUnitCost, LastYearPrice: cfg.LastYearRegularPrice},
		}, nil
	case OptionalMerch:
		if cfg.ExpectedMerchSold < 0 {
			return nil, ErrNegativeMerch
		}
		if cfg.ExpectedMerchSold > total {
			return nil, ErrMerchExceedsAttendees
		}
		regular := total - cfg.ExpectedMerchSold
		if regular < 0 {
			return nil, ErrNegativeRegular
		}
		return []TierSpec{
			{Name: TierRegular, Sold: regular, LastYearPrice: cfg.LastYearRegularPrice},
			{Name: TierMerchInclusive, Sold: cfg.ExpectedMerchSold, MerchCost: cfg.MerchUnitCost, LastYearPrice: cfg.LastYearMerchPrice},
		}, nil
	case NoMerch:
		return []TierSpec{
			{Name: TierRegular, Sold: total, LastYearPrice: cfg.LastYearRegularPrice},
		}, nil
	}
	return nil, fmt.Errorf("unknown merch mode %q", string(m))
}
