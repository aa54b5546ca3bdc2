package models

import "time"

// Club represents a fan club whose economy this service manages.
// Club CRUD itself is owned by an external collaborator; rows here are
// observed read-mostly.
type Club struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null"`             // Display name.
	Slug string `gorm:"type:text;not null;uniqueIndex"` // URL-safe identifier.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the club is live.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Membership links a member to a club. The wallet for the pair is created
// when this row first appears.
type Membership struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClubID   uint64 `gorm:"not null;uniqueIndex:idx_membership_club_member"` // Club scope.
	MemberID uint64 `gorm:"not null;uniqueIndex:idx_membership_club_member"` // Member scope.

	Club   Club   `gorm:"foreignKey:ClubID"`   // Club relation.
	Member Member `gorm:"foreignKey:MemberID"` // Member relation.

	JoinedAt  time.Time `gorm:"not null;autoCreateTime"` // Join timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
