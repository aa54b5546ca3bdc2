package models

import "time"

// Campaign statuses. Funded, failed, and expired are all terminal.
const (
	// CampaignStatusActive accepts contributions until the deadline.
	CampaignStatusActive = "active"
	// CampaignStatusFunded means the goal was reached. Never reverts.
	CampaignStatusFunded = "funded"
	// CampaignStatusFailed means the deadline passed with contributions
	// below the goal; contributors are refund-eligible.
	CampaignStatusFailed = "failed"
	// CampaignStatusExpired means the deadline passed with nothing
	// contributed at all.
	CampaignStatusExpired = "expired"
)

// Campaign is a time-boxed funding goal gating access to rewards.
// Created by club admins out-of-band; this service owns only the funding
// counters and status transitions.
type Campaign struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClubID uint64 `gorm:"not null;index"`     // Owning club.
	Title  string `gorm:"type:text;not null"` // Display title.

	GoalCents    int64 `gorm:"not null"`           // Funding goal in cents.
	CurrentCents int64 `gorm:"not null;default:0"` // Confirmed contributions in cents.

	Deadline time.Time `gorm:"not null;index"`                            // Funding cutoff.
	Status   string    `gorm:"type:text;not null;default:'active';index"` // Lifecycle status.

	FundedAt *time.Time // When the goal was reached, if ever.
	ClosedAt *time.Time // When the campaign failed or expired, if ever.

	Club Club `gorm:"foreignKey:ClubID"` // Club relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
