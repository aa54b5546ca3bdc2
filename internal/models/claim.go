package models

import "time"

// Claim records a member's entitlement to a reward, with a consumable
// ticket count. Never deleted; it is the audit trail for purchases and
// redemptions. tickets_redeemed never exceeds tickets_purchased.
type Claim struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RewardID uint64 `gorm:"not null;uniqueIndex:idx_claim_reward_member"` // Claimed reward.
	MemberID uint64 `gorm:"not null;uniqueIndex:idx_claim_reward_member"` // Claiming member.

	TicketsPurchased int64 `gorm:"not null;default:0"` // Tickets bought so far.
	TicketsRedeemed  int64 `gorm:"not null;default:0"` // Tickets consumed so far.

	AccessCode *string `gorm:"type:text"` // Access artifact, set on full consumption.

	Reward Reward `gorm:"foreignKey:RewardID"` // Reward relation.
	Member Member `gorm:"foreignKey:MemberID"` // Member relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TicketsRemaining returns the unredeemed ticket count.
func (c Claim) TicketsRemaining() int64 {
	return c.TicketsPurchased - c.TicketsRedeemed
}
