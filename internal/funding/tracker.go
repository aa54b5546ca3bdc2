// Package funding owns campaign funding counters and status transitions.
package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/models"
)

// Tracker is the single source of truth for campaign funding state.
// Contributions arrive only from the payment reconciliation worker on
// confirmed transactions.
type Tracker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.now = clock
	return t
}

// Progress is the read model for a campaign's funding state.
type Progress struct {
	CampaignID       uint64  `json:"campaign_id"`
	CurrentCents     int64   `json:"current_cents"`
	GoalCents        int64   `json:"goal_cents"`
	Percentage       float64 `json:"percentage"`
	Status           string  `json:"status"`
	SecondsRemaining int64   `json:"seconds_remaining"`
}

// RecordContribution applies a confirmed contribution inside its own
// transaction. Reconciliation uses ApplyContribution to join its unit.
func (t *Tracker) RecordContribution(ctx context.Context, campaignID uint64, amountCents int64) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return t.ApplyContribution(tx, campaignID, amountCents)
	})
}

// ApplyContribution atomically increments a campaign's funding inside an
// existing transaction and evaluates the funded transition. The increment
// is a guarded SQL update, never read-modify-write, so two contributions
// racing near the goal cannot lose updates.
func (t *Tracker) ApplyContribution(tx *gorm.DB, campaignID uint64, amountCents int64) error {
	if amountCents <= 0 {
		return apperr.Validation("funding: contribution %d must be positive", amountCents)
	}

	increment := tx.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, models.CampaignStatusActive).
		Update("current_cents", gorm.Expr("current_cents + ?", amountCents))
	if increment.Error != nil {
		return fmt.Errorf("funding: increment campaign %d: %w", campaignID, increment.Error)
	}
	if increment.RowsAffected == 0 {
		var campaign models.Campaign
		if errFind := tx.First(&campaign, campaignID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("funding: campaign %d not found", campaignID)
			}
			return fmt.Errorf("funding: load campaign %d: %w", campaignID, errFind)
		}
		return apperr.Precondition("funding: campaign %d is %s, not accepting contributions", campaignID, campaign.Status)
	}

	// Funded transition: compare-and-set so only one caller flips it.
	// Funded is terminal; nothing ever moves a campaign out of it.
	now := t.now().UTC()
	funded := tx.Model(&models.Campaign{}).
		Where("id = ? AND status = ? AND goal_cents > 0 AND current_cents >= goal_cents",
			campaignID, models.CampaignStatusActive).
		Updates(map[string]any{
			"status":    models.CampaignStatusFunded,
			"funded_at": now,
		})
	if funded.Error != nil {
		return fmt.Errorf("funding: funded transition for campaign %d: %w", campaignID, funded.Error)
	}
	if funded.RowsAffected > 0 {
		log.WithFields(log.Fields{
			"campaign_id": campaignID,
		}).Info("funding: campaign funded")
	}
	return nil
}

// ExpiryTransition reports one campaign closed by an expiry sweep.
type ExpiryTransition struct {
	CampaignID     uint64
	Status         string
	CurrentCents   int64
	RefundEligible bool
}

// EvaluateExpiry closes past-deadline active campaigns. Idempotent:
// already-closed campaigns match nothing. Campaigns with contributions
// fail (refund-eligible, refund execution is an external collaborator);
// untouched campaigns merely expire.
func (t *Tracker) EvaluateExpiry(ctx context.Context) ([]ExpiryTransition, error) {
	now := t.now().UTC()

	var transitions []ExpiryTransition
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A non-positive goal can never satisfy the funded transition, so
		// such campaigns are always expiry-eligible past their deadline.
		var stale []models.Campaign
		if errFind := tx.
			Where("status = ? AND deadline < ? AND (goal_cents <= 0 OR current_cents < goal_cents)",
				models.CampaignStatusActive, now).
			Find(&stale).Error; errFind != nil {
			return fmt.Errorf("funding: find expired campaigns: %w", errFind)
		}

		for _, campaign := range stale {
			next := models.CampaignStatusExpired
			if campaign.CurrentCents > 0 {
				next = models.CampaignStatusFailed
			}
			// Guarded update keeps the sweep safe against a contribution
			// landing between the select and this write.
			closed := tx.Model(&models.Campaign{}).
				Where("id = ? AND status = ? AND (goal_cents <= 0 OR current_cents < goal_cents)",
					campaign.ID, models.CampaignStatusActive).
				Updates(map[string]any{
					"status":    next,
					"closed_at": now,
				})
			if closed.Error != nil {
				return fmt.Errorf("funding: close campaign %d: %w", campaign.ID, closed.Error)
			}
			if closed.RowsAffected == 0 {
				continue
			}
			transitions = append(transitions, ExpiryTransition{
				CampaignID:     campaign.ID,
				Status:         next,
				CurrentCents:   campaign.CurrentCents,
				RefundEligible: next == models.CampaignStatusFailed,
			})
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	for _, transition := range transitions {
		entry := log.WithFields(log.Fields{
			"campaign_id":   transition.CampaignID,
			"status":        transition.Status,
			"current_cents": transition.CurrentCents,
		})
		if transition.RefundEligible {
			entry.Warn("funding: campaign failed, contributions refund-eligible")
		} else {
			entry.Info("funding: campaign expired with no contributions")
		}
	}
	return transitions, nil
}

// GetProgress is a pure read of a campaign's funding state.
func (t *Tracker) GetProgress(ctx context.Context, campaignID uint64) (Progress, error) {
	var campaign models.Campaign
	if errFind := t.db.WithContext(ctx).First(&campaign, campaignID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Progress{}, apperr.NotFound("funding: campaign %d not found", campaignID)
		}
		return Progress{}, fmt.Errorf("funding: load campaign %d: %w", campaignID, errFind)
	}

	secondsRemaining := int64(campaign.Deadline.Sub(t.now().UTC()) / time.Second)
	if secondsRemaining < 0 {
		secondsRemaining = 0
	}

	return Progress{
		CampaignID:       campaign.ID,
		CurrentCents:     campaign.CurrentCents,
		GoalCents:        campaign.GoalCents,
		Percentage:       Percentage(campaign.CurrentCents, campaign.GoalCents),
		Status:           campaign.Status,
		SecondsRemaining: secondsRemaining,
	}, nil
}

// Percentage returns funding progress clamped to [0,100], 0 when the
// goal is not positive.
func Percentage(currentCents, goalCents int64) float64 {
	if goalCents <= 0 {
		return 0
	}
	pct := float64(currentCents) / float64(goalCents) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
