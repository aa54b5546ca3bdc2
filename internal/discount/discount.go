// Package discount computes status-gated pricing for rewards.
//
// Prices are frozen when a line enters the cart: the quote produced here
// is stored on the cart line, and later tier changes never re-price an
// in-flight cart.
package discount

import (
	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/status"
)

// Table maps a tier to its discount in basis points (500 = 5%).
type Table map[status.Tier]int64

// maxBps caps discounts at 100%.
const maxBps = 10000

// DefaultTable returns the stock discount ladder used when a club has
// not configured its own.
func DefaultTable() Table {
	return Table{
		status.TierCadet:     0,
		status.TierResident:  500,
		status.TierHeadliner: 1000,
		status.TierSuperfan:  2000,
	}
}

// Validate rejects tables with rates outside [0, 100%].
func (t Table) Validate() error {
	for tier, bps := range t {
		if bps < 0 || bps > maxBps {
			return apperr.Validation("discount: rate %d out of range for tier %s", bps, tier)
		}
	}
	return nil
}

// Quote is a frozen price for one unit of a reward.
type Quote struct {
	BasePriceCents  int64 `json:"base_price_cents"`
	DiscountCents   int64 `json:"discount_cents"`
	FinalPriceCents int64 `json:"final_price_cents"`
	AppliedBps      int64 `json:"applied_bps"`
}

// ForTier prices a reward for a member's tier. A missing tier entry means
// no discount; a zero or negative base price is an input error, never a
// silently-free item.
func ForTier(table Table, tier status.Tier, basePriceCents int64) (Quote, error) {
	if basePriceCents <= 0 {
		return Quote{}, apperr.Validation("discount: base price %d must be positive", basePriceCents)
	}

	bps := table[tier]
	if bps < 0 {
		return Quote{}, apperr.Validation("discount: negative rate %d for tier %s", bps, tier)
	}
	if bps > maxBps {
		return Quote{}, apperr.Validation("discount: rate %d exceeds 100%% for tier %s", bps, tier)
	}

	// Round half up in integer arithmetic.
	discountCents := (basePriceCents*bps + maxBps/2) / maxBps
	return Quote{
		BasePriceCents:  basePriceCents,
		DiscountCents:   discountCents,
		FinalPriceCents: basePriceCents - discountCents,
		AppliedBps:      bps,
	}, nil
}
