package models

import "time"

// Reward inventory statuses.
const (
	// InventoryAvailable means the reward can be purchased.
	InventoryAvailable = "available"
	// InventorySoldOut means the supply cap has been reached.
	InventorySoldOut = "sold_out"
	// InventoryUnavailable means the reward is hidden from purchase.
	InventoryUnavailable = "unavailable"
)

// Reward is a purchasable item, optionally gated by a campaign.
// Priced either in cents (card/stablecoin checkout) or in credits
// (wallet redemption); exactly one of the two should be set.
type Reward struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClubID     uint64  `gorm:"not null;index"` // Owning club.
	CampaignID *uint64 `gorm:"index"`          // Gating campaign, if campaign-bound.

	Title string `gorm:"type:text;not null"` // Display title.

	BasePriceCents *int64 `gorm:""` // Undiscounted price in cents.
	CreditCost     *int64 `gorm:""` // Price in credits, when credit-priced.

	MinStatus       string `gorm:"type:text;not null;default:'cadet'"`     // Minimum tier to purchase.
	InventoryStatus string `gorm:"type:text;not null;default:'available'"` // Availability state.

	SupplyCap  *int64 `gorm:""`                   // Max units sellable, nil = unlimited.
	SupplySold int64  `gorm:"not null;default:0"` // Units sold so far.

	Campaign *Campaign `gorm:"foreignKey:CampaignID"` // Campaign relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
