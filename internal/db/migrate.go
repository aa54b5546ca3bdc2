package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/models"
)

// Migrate creates or upgrades the schema for every persisted model.
// AutoMigrate only adds, so tables created by earlier releases gain new
// columns (line_results, chain_tx_hash, access_code) without data loss.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	targets := []any{
		&models.Club{},
		&models.Member{},
		&models.Membership{},
		&models.Wallet{},
		&models.Campaign{},
		&models.Reward{},
		&models.Claim{},
		&models.Transaction{},
		&models.Setting{},
	}
	if errMigrate := conn.AutoMigrate(targets...); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
