package models

import "time"

// Member represents a fan account.
type Member struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Login/display handle.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Contact email.
	Name     string `gorm:"type:text"`                      // Display name.

	Disabled bool `gorm:"not null;default:false"` // Whether the member is blocked.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
