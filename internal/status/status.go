// Package status maps accumulated points to fan status tiers.
package status

import (
	"errors"
	"fmt"
)

// Tier is a member's rank within a club.
type Tier string

// Status tiers, lowest to highest.
const (
	TierCadet     Tier = "cadet"
	TierResident  Tier = "resident"
	TierHeadliner Tier = "headliner"
	TierSuperfan  Tier = "superfan"
)

// ErrUnknownTier indicates a threshold lookup for a tier not in the enum.
var ErrUnknownTier = errors.New("status: unknown tier")

// ordered lists tiers in ascending threshold order.
var ordered = []Tier{TierCadet, TierResident, TierHeadliner, TierSuperfan}

// Thresholds holds the minimum points for each tier. Values must be
// strictly increasing in tier order, with the lowest tier at zero.
type Thresholds map[Tier]int64

// DefaultThresholds returns the stock tier ladder used when a club has
// not configured its own.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TierCadet:     0,
		TierResident:  500,
		TierHeadliner: 1500,
		TierSuperfan:  5000,
	}
}

// Validate checks that every tier is present and thresholds strictly
// increase, with the lowest tier starting at zero.
func (t Thresholds) Validate() error {
	prev := int64(-1)
	for i, tier := range ordered {
		value, ok := t[tier]
		if !ok {
			return fmt.Errorf("status: missing threshold for tier %s", tier)
		}
		if i == 0 && value != 0 {
			return fmt.Errorf("status: tier %s threshold must be 0, got %d", tier, value)
		}
		if value <= prev {
			return fmt.Errorf("status: thresholds not strictly increasing at tier %s", tier)
		}
		prev = value
	}
	return nil
}

// ThresholdFor returns the minimum points for a tier.
func (t Thresholds) ThresholdFor(tier Tier) (int64, error) {
	value, ok := t[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	return value, nil
}

// Breakdown describes a member's standing on the tier ladder.
type Breakdown struct {
	Tier         Tier    `json:"tier"`
	NextTier     *Tier   `json:"next_tier,omitempty"`
	Points       int64   `json:"points"`
	PointsToNext int64   `json:"points_to_next"`
	Progress     float64 `json:"progress"`
}

// Compute resolves the tier for a point total: the highest tier whose
// threshold does not exceed the points. Progress toward the next tier is
// clamped to [0,1] and fixed at 1.0 at the top of the ladder.
func Compute(thresholds Thresholds, points int64) (Breakdown, error) {
	if points < 0 {
		return Breakdown{}, fmt.Errorf("status: negative points %d", points)
	}
	if err := thresholds.Validate(); err != nil {
		return Breakdown{}, err
	}

	current := ordered[0]
	currentIdx := 0
	for i, tier := range ordered {
		if thresholds[tier] <= points {
			current = tier
			currentIdx = i
		}
	}

	out := Breakdown{
		Tier:     current,
		Points:   points,
		Progress: 1.0,
	}
	if currentIdx == len(ordered)-1 {
		return out, nil
	}

	next := ordered[currentIdx+1]
	out.NextTier = &next

	currentThreshold := thresholds[current]
	nextThreshold := thresholds[next]
	out.PointsToNext = nextThreshold - points
	if out.PointsToNext < 0 {
		out.PointsToNext = 0
	}

	span := nextThreshold - currentThreshold
	progress := float64(points-currentThreshold) / float64(span)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	out.Progress = progress
	return out, nil
}

// Meets reports whether a tier satisfies a minimum tier requirement.
func Meets(tier, minimum Tier) (bool, error) {
	tierIdx, minIdx := -1, -1
	for i, t := range ordered {
		if t == tier {
			tierIdx = i
		}
		if t == minimum {
			minIdx = i
		}
	}
	if tierIdx < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	if minIdx < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownTier, minimum)
	}
	return tierIdx >= minIdx, nil
}
