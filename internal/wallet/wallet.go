// Package wallet manages per-club point balances.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/status"
)

// Ledger reads and mutates wallets. All mutations are atomic SQL
// increments guarded by balance checks, never read-modify-write.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a Ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Ensure creates the wallet for a club/member pair if it does not exist,
// as happens on first club join, and returns it.
func (l *Ledger) Ensure(ctx context.Context, clubID, memberID uint64) (*models.Wallet, error) {
	wallet := models.Wallet{ClubID: clubID, MemberID: memberID}
	if errEnsure := l.db.WithContext(ctx).
		Where("club_id = ? AND member_id = ?", clubID, memberID).
		FirstOrCreate(&wallet).Error; errEnsure != nil {
		return nil, fmt.Errorf("wallet: ensure %d/%d: %w", clubID, memberID, errEnsure)
	}
	return &wallet, nil
}

// Get loads a wallet.
func (l *Ledger) Get(ctx context.Context, clubID, memberID uint64) (*models.Wallet, error) {
	var wallet models.Wallet
	if errFind := l.db.WithContext(ctx).
		Where("club_id = ? AND member_id = ?", clubID, memberID).
		First(&wallet).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("wallet: no wallet for club %d member %d", clubID, memberID)
		}
		return nil, fmt.Errorf("wallet: load %d/%d: %w", clubID, memberID, errFind)
	}
	return &wallet, nil
}

// CreditPurchased adds purchased points inside an existing transaction.
// The wallet row is created on demand so a first purchase also works.
func (l *Ledger) CreditPurchased(tx *gorm.DB, clubID, memberID uint64, points int64) error {
	if points <= 0 {
		return apperr.Validation("wallet: credit amount %d must be positive", points)
	}

	wallet := models.Wallet{ClubID: clubID, MemberID: memberID}
	if errEnsure := tx.
		Where("club_id = ? AND member_id = ?", clubID, memberID).
		FirstOrCreate(&wallet).Error; errEnsure != nil {
		return fmt.Errorf("wallet: ensure %d/%d: %w", clubID, memberID, errEnsure)
	}

	if errUpdate := tx.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("purchased_points", gorm.Expr("purchased_points + ?", points)).Error; errUpdate != nil {
		return fmt.Errorf("wallet: credit %d/%d: %w", clubID, memberID, errUpdate)
	}
	return nil
}

// AddEarned adds activity-earned points.
func (l *Ledger) AddEarned(ctx context.Context, clubID, memberID uint64, points int64) error {
	if points <= 0 {
		return apperr.Validation("wallet: earned amount %d must be positive", points)
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet := models.Wallet{ClubID: clubID, MemberID: memberID}
		if errEnsure := tx.
			Where("club_id = ? AND member_id = ?", clubID, memberID).
			FirstOrCreate(&wallet).Error; errEnsure != nil {
			return fmt.Errorf("wallet: ensure %d/%d: %w", clubID, memberID, errEnsure)
		}
		if errUpdate := tx.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Update("earned_points", gorm.Expr("earned_points + ?", points)).Error; errUpdate != nil {
			return fmt.Errorf("wallet: add earned %d/%d: %w", clubID, memberID, errUpdate)
		}
		return nil
	})
}

// SpendPurchased deducts spendable points under a row lock, failing
// without side effects when the balance is short. Status protection
// excludes earned points below the current tier threshold.
func (l *Ledger) SpendPurchased(ctx context.Context, clubID, memberID uint64, points int64, thresholds status.Thresholds, protectStatus bool) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.SpendTx(tx, clubID, memberID, points, thresholds, protectStatus)
	})
}

// SpendTx deducts spendable points inside an existing transaction, so
// a caller can spend and apply the purchased effect as one unit.
func (l *Ledger) SpendTx(tx *gorm.DB, clubID, memberID uint64, points int64, thresholds status.Thresholds, protectStatus bool) error {
	if points <= 0 {
		return apperr.Validation("wallet: spend amount %d must be positive", points)
	}

	var wallet models.Wallet
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("club_id = ? AND member_id = ?", clubID, memberID).
		First(&wallet).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return apperr.NotFound("wallet: no wallet for club %d member %d", clubID, memberID)
		}
		return fmt.Errorf("wallet: lock %d/%d: %w", clubID, memberID, errFind)
	}

	spendable, errSpendable := Spendable(wallet, thresholds, protectStatus)
	if errSpendable != nil {
		return errSpendable
	}
	if spendable < points {
		return apperr.Precondition("wallet: insufficient balance, have %d spendable, need %d", spendable, points)
	}

	// Purchased points drain first; earned points only when the
	// member did not request status protection.
	fromPurchased := points
	if fromPurchased > wallet.PurchasedPoints {
		fromPurchased = wallet.PurchasedPoints
	}
	fromEarned := points - fromPurchased

	if errUpdate := tx.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]any{
			"purchased_points": gorm.Expr("purchased_points - ?", fromPurchased),
			"earned_points":    gorm.Expr("earned_points - ?", fromEarned),
		}).Error; errUpdate != nil {
		return fmt.Errorf("wallet: spend %d/%d: %w", clubID, memberID, errUpdate)
	}
	return nil
}

// Spendable computes the balance available for spending. With status
// protection, earned points up to the current tier threshold stay locked
// so spending cannot demote the member. The tier is computed from earned
// points alone; purchased points never count toward status.
func Spendable(wallet models.Wallet, thresholds status.Thresholds, protectStatus bool) (int64, error) {
	total := wallet.TotalBalance()
	if !protectStatus {
		return total, nil
	}

	breakdown, errCompute := status.Compute(thresholds, wallet.EarnedPoints)
	if errCompute != nil {
		return 0, errCompute
	}
	threshold, errThreshold := thresholds.ThresholdFor(breakdown.Tier)
	if errThreshold != nil {
		return 0, errThreshold
	}

	locked := threshold
	if locked > wallet.EarnedPoints {
		locked = wallet.EarnedPoints
	}
	return total - locked, nil
}
