// Package cart accumulates checkout line items and computes exact totals.
//
// All money math runs on int64 micro-units (one ten-thousandth of a cent)
// so mixed credit/item carts never accumulate floating-point drift. The
// conversion back to cents happens once, at the boundary.
package cart

import (
	"math"
	"time"

	"github.com/superfanlabs/fanclub/internal/apperr"
)

// Line kinds.
const (
	// KindCredits is a bulk credit purchase line.
	KindCredits = "credits"
	// KindItem is an individual reward purchase line.
	KindItem = "item"
)

// Unit conversion constants. One credit is pegged to one currency unit.
const (
	microsPerCent  = 10_000
	centsPerCredit = 100
)

// Line is one cart entry. For credit lines UnitCredits holds the credits
// per unit; for item lines UnitAmountCents holds the frozen, already
// discounted price per unit. Lines are immutable once checkout is in
// flight.
type Line struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	UnitCredits     int64   `json:"unit_credits,omitempty"`
	UnitAmountCents int64   `json:"unit_amount_cents,omitempty"`
	Quantity        int64   `json:"quantity"`
	RewardID        *uint64 `json:"reward_id,omitempty"`
	CampaignID      *uint64 `json:"campaign_id,omitempty"`
	AppliedBps      int64   `json:"applied_bps,omitempty"`
}

// Cart is the explicit cart value passed into checkout and
// reconciliation. It is owned by one member within one club and carried
// by handle through the store; nothing holds it in ambient state.
type Cart struct {
	ClubID    uint64    `json:"club_id"`
	MemberID  uint64    `json:"member_id"`
	Lines     []Line    `json:"lines"`
	LockedRef string    `json:"locked_ref,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total is a cart aggregate across both units.
type Total struct {
	Cents   int64 `json:"cents"`
	Credits int64 `json:"credits"`
}

// Locked reports whether checkout is in flight for this cart.
func (c *Cart) Locked() bool { return c.LockedRef != "" }

// Lock pins the cart to a checkout reference. Locked carts reject
// mutation until the rail confirms or the member abandons.
func (c *Cart) Lock(ref string) error {
	if c.Locked() && c.LockedRef != ref {
		return apperr.Conflict("cart: checkout already in flight under %s", c.LockedRef)
	}
	c.LockedRef = ref
	return nil
}

// Unlock releases an abandoned checkout, leaving the lines retryable.
func (c *Cart) Unlock() { c.LockedRef = "" }

// AddLine validates and appends a line.
func (c *Cart) AddLine(line Line) error {
	if c.Locked() {
		return apperr.Conflict("cart: locked by checkout %s", c.LockedRef)
	}
	if err := validateLine(line); err != nil {
		return err
	}
	for _, existing := range c.Lines {
		if existing.ID == line.ID {
			return apperr.Conflict("cart: duplicate line id %s", line.ID)
		}
	}
	c.Lines = append(c.Lines, line)
	return nil
}

// RemoveLine deletes a line by id.
func (c *Cart) RemoveLine(id string) error {
	if c.Locked() {
		return apperr.Conflict("cart: locked by checkout %s", c.LockedRef)
	}
	for i, line := range c.Lines {
		if line.ID == id {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("cart: no line %s", id)
}

// validateLine rejects malformed lines before they can touch a total.
func validateLine(line Line) error {
	if line.ID == "" {
		return apperr.Validation("cart: line id is required")
	}
	if line.Quantity <= 0 {
		return apperr.Validation("cart: quantity %d must be positive", line.Quantity)
	}
	switch line.Kind {
	case KindCredits:
		if line.UnitCredits <= 0 {
			return apperr.Validation("cart: credit line needs positive unit credits, got %d", line.UnitCredits)
		}
	case KindItem:
		if line.UnitAmountCents <= 0 {
			return apperr.Validation("cart: item line needs positive unit amount, got %d", line.UnitAmountCents)
		}
	default:
		return apperr.Validation("cart: unknown line kind %q", line.Kind)
	}
	return nil
}

// lineMicros returns a line's value in micro-units.
func lineMicros(line Line) (int64, error) {
	var unitMicros int64
	switch line.Kind {
	case KindCredits:
		unitMicros = line.UnitCredits * centsPerCredit * microsPerCent
	case KindItem:
		unitMicros = line.UnitAmountCents * microsPerCent
	default:
		return 0, apperr.Validation("cart: unknown line kind %q", line.Kind)
	}
	if unitMicros != 0 && line.Quantity > math.MaxInt64/unitMicros {
		return 0, apperr.Validation("cart: line %s total overflows", line.ID)
	}
	return unitMicros * line.Quantity, nil
}

// ComputeTotal sums the cart exactly: every line converts to integer
// micro-units, the micro-units sum as int64, and the result converts back
// to cents once. total = Σ(unit_amount × quantity) with no drift.
func ComputeTotal(c *Cart) (Total, error) {
	if c == nil {
		return Total{}, apperr.Validation("cart: nil cart")
	}

	var microsTotal int64
	var credits int64
	for _, line := range c.Lines {
		if err := validateLine(line); err != nil {
			return Total{}, err
		}
		micros, errMicros := lineMicros(line)
		if errMicros != nil {
			return Total{}, errMicros
		}
		if microsTotal > math.MaxInt64-micros {
			return Total{}, apperr.Validation("cart: total overflows")
		}
		microsTotal += micros
		if line.Kind == KindCredits {
			credits += line.UnitCredits * line.Quantity
		}
	}

	return Total{
		Cents:   microsTotal / microsPerCent,
		Credits: credits,
	}, nil
}
