package models

import "time"

// Wallet tracks a member's point balances within one club.
//
// Earned and purchased points are kept separate so that status protection
// can exclude tier-locked earned points from the spendable balance.
// Both columns stay non-negative; all mutations go through atomic SQL
// increments guarded by balance checks.
type Wallet struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClubID   uint64 `gorm:"not null;uniqueIndex:idx_wallet_club_member"` // Club scope.
	MemberID uint64 `gorm:"not null;uniqueIndex:idx_wallet_club_member"` // Member scope.

	EarnedPoints    int64 `gorm:"not null;default:0"` // Points earned through activity.
	PurchasedPoints int64 `gorm:"not null;default:0"` // Points bought as credits.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TotalBalance returns the combined point balance.
func (w Wallet) TotalBalance() int64 {
	return w.EarnedPoints + w.PurchasedPoints
}
