// Package redemption consumes claim tickets against rewards.
package redemption

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/status"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

// Redemption failure sentinels, wrapped in apperr kinds for transport.
var (
	// ErrNotFunded means the claim's campaign has not reached its goal.
	ErrNotFunded = errors.New("redemption: campaign not funded")
	// ErrInsufficientBalance means fewer tickets remain than requested.
	ErrInsufficientBalance = errors.New("redemption: insufficient tickets")
	// ErrInvalidAmount means the requested amount is not a positive integer.
	ErrInvalidAmount = errors.New("redemption: invalid amount")
	// ErrNotCreditPriced means the reward carries no credit price.
	ErrNotCreditPriced = errors.New("redemption: reward not credit-priced")
	// ErrStatusTooLow means the member's tier is below the reward's gate.
	ErrStatusTooLow = errors.New("redemption: status too low")
)

// Engine serializes ticket consumption per claim and spends wallet
// credits on credit-priced rewards.
type Engine struct {
	db      *gorm.DB
	wallets *wallet.Ledger
}

// NewEngine constructs an Engine.
func NewEngine(db *gorm.DB, wallets *wallet.Ledger) *Engine {
	return &Engine{db: db, wallets: wallets}
}

// Result reports the outcome of a redemption.
type Result struct {
	Remaining  int64  `json:"remaining"`
	AccessCode string `json:"access_code,omitempty"`
}

// Redeem consumes tickets from a claim. Campaign-gated rewards require
// the campaign to be funded; plain tier rewards have no funding gate.
// The claim row is locked for the whole check-and-decrement, so
// concurrent attempts serialize and tickets_redeemed can never exceed
// tickets_purchased.
func (e *Engine) Redeem(ctx context.Context, claimID, memberID uint64, amount int64) (Result, error) {
	if amount <= 0 {
		return Result{}, apperr.Wrap(apperr.KindValidation, ErrInvalidAmount, "redemption: amount %d", amount)
	}

	var result Result
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var claim models.Claim
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND member_id = ?", claimID, memberID).
			First(&claim).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("redemption: claim %d not found", claimID)
			}
			return fmt.Errorf("redemption: lock claim %d: %w", claimID, errFind)
		}

		var reward models.Reward
		if errFind := tx.First(&reward, claim.RewardID).Error; errFind != nil {
			return fmt.Errorf("redemption: load reward %d: %w", claim.RewardID, errFind)
		}

		if reward.CampaignID != nil {
			var campaign models.Campaign
			if errFind := tx.First(&campaign, *reward.CampaignID).Error; errFind != nil {
				return fmt.Errorf("redemption: load campaign %d: %w", *reward.CampaignID, errFind)
			}
			if campaign.Status != models.CampaignStatusFunded {
				return apperr.Wrap(apperr.KindPrecondition, ErrNotFunded,
					"redemption: campaign %d is %s", campaign.ID, campaign.Status)
			}
		}

		if claim.TicketsRemaining() < amount {
			return apperr.Wrap(apperr.KindPrecondition, ErrInsufficientBalance,
				"redemption: %d remaining, requested %d", claim.TicketsRemaining(), amount)
		}

		updates := map[string]any{
			"tickets_redeemed": gorm.Expr("tickets_redeemed + ?", amount),
		}
		fullyConsumed := claim.TicketsRemaining() == amount
		accessCode := ""
		if fullyConsumed && claim.AccessCode == nil {
			accessCode = uuid.NewString()
			updates["access_code"] = accessCode
		}

		// The guard repeats the balance check so even a racing writer
		// outside this lock cannot push tickets_redeemed past purchased.
		decrement := tx.Model(&models.Claim{}).
			Where("id = ? AND tickets_purchased - tickets_redeemed >= ?", claim.ID, amount).
			Updates(updates)
		if decrement.Error != nil {
			return fmt.Errorf("redemption: decrement claim %d: %w", claim.ID, decrement.Error)
		}
		if decrement.RowsAffected == 0 {
			return apperr.Wrap(apperr.KindPrecondition, ErrInsufficientBalance,
				"redemption: claim %d balance changed underneath", claim.ID)
		}

		result = Result{Remaining: claim.TicketsRemaining() - amount}
		if fullyConsumed {
			if accessCode == "" && claim.AccessCode != nil {
				accessCode = *claim.AccessCode
			}
			result.AccessCode = accessCode
		}
		return nil
	})
	if errTx != nil {
		return Result{}, errTx
	}

	log.WithFields(log.Fields{
		"claim_id":  claimID,
		"member_id": memberID,
		"amount":    amount,
		"remaining": result.Remaining,
	}).Info("redemption: tickets consumed")
	return result, nil
}

// PurchaseResult reports a credit-priced purchase.
type PurchaseResult struct {
	ClaimID          uint64 `json:"claim_id"`
	TicketsPurchased int64  `json:"tickets_purchased"`
	CreditsSpent     int64  `json:"credits_spent"`
}

// ClaimWithCredits buys a credit-priced reward with wallet points. The
// spend, the supply decrement, and the claim land in one transaction,
// so a short balance or a sold-out reward leaves nothing behind.
// Funded-campaign and tier gates mirror the money checkout path.
func (e *Engine) ClaimWithCredits(ctx context.Context, clubID, memberID, rewardID uint64, quantity int64, thresholds status.Thresholds, protectStatus bool) (PurchaseResult, error) {
	if quantity <= 0 {
		return PurchaseResult{}, apperr.Wrap(apperr.KindValidation, ErrInvalidAmount, "redemption: quantity %d", quantity)
	}

	var result PurchaseResult
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		if errFind := tx.
			Where("id = ? AND club_id = ?", rewardID, clubID).
			First(&reward).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("redemption: reward %d not found", rewardID)
			}
			return fmt.Errorf("redemption: load reward %d: %w", rewardID, errFind)
		}
		if reward.CreditCost == nil || *reward.CreditCost <= 0 {
			return apperr.Wrap(apperr.KindValidation, ErrNotCreditPriced,
				"redemption: reward %d", rewardID)
		}

		if reward.CampaignID != nil {
			var campaign models.Campaign
			if errFind := tx.First(&campaign, *reward.CampaignID).Error; errFind != nil {
				return fmt.Errorf("redemption: load campaign %d: %w", *reward.CampaignID, errFind)
			}
			if campaign.Status != models.CampaignStatusFunded {
				return apperr.Wrap(apperr.KindPrecondition, ErrNotFunded,
					"redemption: campaign %d is %s", campaign.ID, campaign.Status)
			}
		}

		member, errEnsure := e.ensureWallet(tx, clubID, memberID)
		if errEnsure != nil {
			return errEnsure
		}
		breakdown, errCompute := status.Compute(thresholds, member.EarnedPoints)
		if errCompute != nil {
			return errCompute
		}
		meets, errMeets := status.Meets(breakdown.Tier, status.Tier(reward.MinStatus))
		if errMeets != nil {
			return errMeets
		}
		if !meets {
			return apperr.Wrap(apperr.KindPrecondition, ErrStatusTooLow,
				"redemption: reward %d requires %s, member is %s", rewardID, reward.MinStatus, breakdown.Tier)
		}

		// Atomic check-and-increment so concurrent purchases cannot
		// oversell a capped reward.
		claimed := tx.Model(&models.Reward{}).
			Where("id = ? AND inventory_status = ? AND (supply_cap IS NULL OR supply_sold + ? <= supply_cap)",
				rewardID, models.InventoryAvailable, quantity).
			Update("supply_sold", gorm.Expr("supply_sold + ?", quantity))
		if claimed.Error != nil {
			return fmt.Errorf("redemption: claim supply for reward %d: %w", rewardID, claimed.Error)
		}
		if claimed.RowsAffected == 0 {
			return apperr.Precondition("redemption: reward %d sold out or unavailable", rewardID)
		}
		if errFlip := tx.Model(&models.Reward{}).
			Where("id = ? AND supply_cap IS NOT NULL AND supply_sold >= supply_cap AND inventory_status = ?",
				rewardID, models.InventoryAvailable).
			Update("inventory_status", models.InventorySoldOut).Error; errFlip != nil {
			return fmt.Errorf("redemption: flip reward %d sold out: %w", rewardID, errFlip)
		}

		cost := *reward.CreditCost * quantity
		if errSpend := e.wallets.SpendTx(tx, clubID, memberID, cost, thresholds, protectStatus); errSpend != nil {
			return errSpend
		}

		claim := models.Claim{RewardID: rewardID, MemberID: memberID}
		if errClaim := tx.
			Where("reward_id = ? AND member_id = ?", rewardID, memberID).
			FirstOrCreate(&claim).Error; errClaim != nil {
			return fmt.Errorf("redemption: ensure claim for reward %d: %w", rewardID, errClaim)
		}
		if errTickets := tx.Model(&models.Claim{}).
			Where("id = ?", claim.ID).
			Update("tickets_purchased", gorm.Expr("tickets_purchased + ?", quantity)).Error; errTickets != nil {
			return fmt.Errorf("redemption: add tickets to claim %d: %w", claim.ID, errTickets)
		}

		result = PurchaseResult{
			ClaimID:          claim.ID,
			TicketsPurchased: claim.TicketsPurchased + quantity,
			CreditsSpent:     cost,
		}
		return nil
	})
	if errTx != nil {
		return PurchaseResult{}, errTx
	}

	log.WithFields(log.Fields{
		"reward_id": rewardID,
		"member_id": memberID,
		"quantity":  quantity,
		"credits":   result.CreditsSpent,
	}).Info("redemption: reward purchased with credits")
	return result, nil
}

// ensureWallet creates the member's wallet on first use inside the
// purchase transaction.
func (e *Engine) ensureWallet(tx *gorm.DB, clubID, memberID uint64) (*models.Wallet, error) {
	w := models.Wallet{ClubID: clubID, MemberID: memberID}
	if errEnsure := tx.
		Where("club_id = ? AND member_id = ?", clubID, memberID).
		FirstOrCreate(&w).Error; errEnsure != nil {
		return nil, fmt.Errorf("redemption: ensure wallet %d/%d: %w", clubID, memberID, errEnsure)
	}
	return &w, nil
}
