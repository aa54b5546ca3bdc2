package funding

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/models"
)

func setupFundingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:funding_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Club{}, &models.Campaign{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func createCampaign(t *testing.T, db *gorm.DB, goal, current int64, deadline time.Time, status string) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		ClubID:       1,
		Title:        "tour bus fund",
		GoalCents:    goal,
		CurrentCents: current,
		Deadline:     deadline,
		Status:       status,
	}
	if errCreate := db.Create(campaign).Error; errCreate != nil {
		t.Fatalf("create campaign: %v", errCreate)
	}
	return campaign
}

func TestGetProgress_QuarterFunded(t *testing.T) {
	t.Parallel()

	db := setupFundingTestDB(t)
	campaign := createCampaign(t, db, 100000, 25000, time.Now().Add(48*time.Hour), models.CampaignStatusActive)

	progress, errProgress := NewTracker(db).GetProgress(context.Background(), campaign.ID)
	if errProgress != nil {
		t.Fatalf("progress: %v", errProgress)
	}
	if progress.Percentage != 25 {
		t.Fatalf("percentage = %f, want 25", progress.Percentage)
	}
	if remaining := progress.GoalCents - progress.CurrentCents; remaining != 75000 {
		t.Fatalf("remaining = %d, want 75000", remaining)
	}
	if progress.SecondsRemaining <= 0 {
		t.Fatalf("seconds remaining = %d, want positive", progress.SecondsRemaining)
	}
}

func TestPercentage_Clamping(t *testing.T) {
	t.Parallel()

	if got := Percentage(25000, 100000); got != 25 {
		t.Fatalf("Percentage(25000, 100000) = %f, want 25", got)
	}
	if got := Percentage(200000, 100000); got != 100 {
		t.Fatalf("over-goal percentage = %f, want clamp to 100", got)
	}
	if got := Percentage(5000, 0); got != 0 {
		t.Fatalf("zero-goal percentage = %f, want 0", got)
	}
	if got := Percentage(5000, -100); got != 0 {
		t.Fatalf("negative-goal percentage = %f, want 0", got)
	}
}

func TestRecordContribution_FundedTransition(t *testing.T) {
	t.Parallel()

	db := setupFundingTestDB(t)
	campaign := createCampaign(t, db, 10000, 9000, time.Now().Add(time.Hour), models.CampaignStatusActive)
	tracker := NewTracker(db)

	if errRecord := tracker.RecordContribution(context.Background(), campaign.ID, 500); errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}

	var reloaded models.Campaign
	if errFind := db.First(&reloaded, campaign.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.CampaignStatusActive {
		t.Fatalf("status = %s before goal met, want active", reloaded.Status)
	}

	if errRecord := tracker.RecordContribution(context.Background(), campaign.ID, 500); errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}
	if errFind := db.First(&reloaded, campaign.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.CampaignStatusFunded {
		t.Fatalf("status = %s at goal, want funded", reloaded.Status)
	}
	if reloaded.CurrentCents != 10000 {
		t.Fatalf("current = %d, want 10000", reloaded.CurrentCents)
	}
	if reloaded.FundedAt == nil {
		t.Fatalf("funded_at not set")
	}
}

func TestRecordContribution_FundedIsTerminal(t *testing.T) {
	t.Parallel()

	db := setupFundingTestDB(t)
	campaign := createCampaign(t, db, 10000, 10000, time.Now().Add(time.Hour), models.CampaignStatusFunded)

	errRecord := NewTracker(db).RecordContribution(context.Background(), campaign.ID, 100)
	if errRecord == nil {
		t.Fatalf("expected precondition error for funded campaign")
	}
	if apperr.KindOf(errRecord) != apperr.KindPrecondition {
		t.Fatalf("kind = %v, want precondition", apperr.KindOf(errRecord))
	}

	var reloaded models.Campaign
	if errFind := db.First(&reloaded, campaign.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.CurrentCents != 10000 {
		t.Fatalf("current = %d, funded campaign must not change", reloaded.CurrentCents)
	}
}

func TestRecordContribution_Validation(t *testing.T) {
	t.Parallel()

	db := setupFundingTestDB(t)
	campaign := createCampaign(t, db, 10000, 0, time.Now().Add(time.Hour), models.CampaignStatusActive)
	tracker := NewTracker(db)

	for _, amount := range []int64{0, -500} {
		errRecord := tracker.RecordContribution(context.Background(), campaign.ID, amount)
		if apperr.KindOf(errRecord) != apperr.KindValidation {
			t.Fatalf("amount %d: kind = %v, want validation", amount, apperr.KindOf(errRecord))
		}
	}

	errRecord := tracker.RecordContribution(context.Background(), 9999, 100)
	if apperr.KindOf(errRecord) != apperr.KindNotFound {
		t.Fatalf("missing campaign: kind = %v, want not found", apperr.KindOf(errRecord))
	}
}

func TestRecordContribution_MonotonicPercentage(t *testing.T) {
	t.Parallel()

	db := setupFundingTestDB(t)
	campaign := createCampaign(t, db, 50000, 0, time.Now().Add(time.Hour), models.CampaignStatusActive)
	tracker := NewTracker(db)

	last := float64(-1)
	for i := 0; i < 10; i++ {
		if errRecord := tracker.RecordContribution(context.Background(), campaign.ID, 4000); errRecord != nil {
			t.Fatalf("record %d: %v", i, errRecord)
		}
		progress, errProgress := tracker.GetProgress(context.Background(), campaign.ID)
		if errProgress != nil {
			t.Fatalf("progress %d: %v", i, errProgress)
		}
		if progress.Percentage < last {
			t.Fatalf("percentage decreased: %f -> %f", last, progress.Percentage)
		}
		if progress.Percentage < 0 || progress.Percentage > 100 {
			t.Fatalf("percentage %f out of [0,100]", progress.Percentage)
		}
		last = progress.Percentage
	}
}

func TestEvaluateExpiry_FailedVersusExpired(t *testing.T) {
	t.Parallel()

	db := setupFundingTestDB(t)
	past := time.Now().Add(-time.Hour)
	partially := createCampaign(t, db, 100000, 25000, past, models.CampaignStatusActive)
	untouched := createCampaign(t, db, 100000, 0, past, models.CampaignStatusActive)
	live := createCampaign(t, db, 100000, 0, time.Now().Add(time.Hour), models.CampaignStatusActive)
	funded := createCampaign(t, db, 100000, 100000, past, models.CampaignStatusFunded)

	tracker := NewTracker(db)
	transitions, errSweep := tracker.EvaluateExpiry(context.Background())
	if errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}
	if len(transitions) != 2 {
		t.Fatalf("transitions = %d, want 2", len(transitions))
	}

	assertStatus := func(id uint64, want string) {
		t.Helper()
		var reloaded models.Campaign
		if errFind := db.First(&reloaded, id).Error; errFind != nil {
			t.Fatalf("reload %d: %v", id, errFind)
		}
		if reloaded.Status != want {
			t.Fatalf("campaign %d status = %s, want %s", id, reloaded.Status, want)
		}
	}
	assertStatus(partially.ID, models.CampaignStatusFailed)
	assertStatus(untouched.ID, models.CampaignStatusExpired)
	assertStatus(live.ID, models.CampaignStatusActive)
	assertStatus(funded.ID, models.CampaignStatusFunded)

	for _, transition := range transitions {
		if transition.CampaignID == partially.ID && !transition.RefundEligible {
			t.Fatalf("failed campaign should be refund-eligible")
		}
		if transition.CampaignID == untouched.ID && transition.RefundEligible {
			t.Fatalf("expired campaign should not be refund-eligible")
		}
	}

	// Idempotent: a second sweep finds nothing.
	again, errAgain := tracker.EvaluateExpiry(context.Background())
	if errAgain != nil {
		t.Fatalf("second sweep: %v", errAgain)
	}
	if len(again) != 0 {
		t.Fatalf("second sweep transitions = %d, want 0", len(again))
	}
}

func TestEvaluateExpiry_ZeroGoalCannotOutliveDeadline(t *testing.T) {
	t.Parallel()

	db := setupFundingTestDB(t)
	past := time.Now().Add(-time.Hour)
	// current_cents >= goal_cents, but a non-positive goal never funds;
	// the sweep must still close these.
	zeroUntouched := createCampaign(t, db, 0, 0, past, models.CampaignStatusActive)
	zeroContributed := createCampaign(t, db, 0, 5000, past, models.CampaignStatusActive)

	transitions, errSweep := NewTracker(db).EvaluateExpiry(context.Background())
	if errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}
	if len(transitions) != 2 {
		t.Fatalf("transitions = %d, want 2", len(transitions))
	}

	var reloaded models.Campaign
	if errFind := db.First(&reloaded, zeroUntouched.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.CampaignStatusExpired {
		t.Fatalf("zero-goal untouched campaign status = %s, want expired", reloaded.Status)
	}
	var reloadedContributed models.Campaign
	if errFind := db.First(&reloadedContributed, zeroContributed.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloadedContributed.Status != models.CampaignStatusFailed {
		t.Fatalf("zero-goal contributed campaign status = %s, want failed (refund-eligible)", reloadedContributed.Status)
	}
}
