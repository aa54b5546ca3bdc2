package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/superfanlabs/fanclub/internal/db"
	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/settings"
	"github.com/superfanlabs/fanclub/internal/status"
)

func setupAdminTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	// Parent rows referenced by fixtures below; dbpkg.Open enforces
	// foreign keys, unlike the raw sqlite opens in other packages.
	club := models.Club{ID: 1, Name: "test club", Slug: "test-club"}
	if errCreate := conn.Create(&club).Error; errCreate != nil {
		t.Fatalf("create club: %v", errCreate)
	}
	return conn
}

func TestTransactionListFiltersAndSearch(t *testing.T) {
	conn := setupAdminTestDB(t)

	rows := []models.Transaction{
		{IdempotencyKey: "SESS_Alpha", Rail: models.RailCard, ClubID: 1, MemberID: 7, AmountCents: 1000, ExternalRef: "SESS_Alpha", State: models.TxStateConfirmed},
		{IdempotencyKey: "sess_beta", Rail: models.RailCard, ClubID: 1, MemberID: 8, AmountCents: 2000, ExternalRef: "sess_beta", State: models.TxStatePending},
		{IdempotencyKey: "xfer_gamma", Rail: models.RailStablecoin, ClubID: 2, MemberID: 9, AmountCents: 3000, ExternalRef: "xfer_gamma", State: models.TxStateConfirmed},
	}
	for i := range rows {
		if errCreate := conn.Create(&rows[i]).Error; errCreate != nil {
			t.Fatalf("create transaction: %v", errCreate)
		}
	}

	h := NewTransactionHandler(conn)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/admin/transactions?search=sess&state=confirmed", nil)

	h.List(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Transactions []transactionAdminDTO `json:"transactions"`
		Total        int64                 `json:"total"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Total != 1 || len(resp.Transactions) != 1 {
		t.Fatalf("total = %d rows = %d, want 1 (case-insensitive search + state filter)", resp.Total, len(resp.Transactions))
	}
	if resp.Transactions[0].Reference != "SESS_Alpha" {
		t.Fatalf("reference = %s, want SESS_Alpha", resp.Transactions[0].Reference)
	}
}

func TestEvaluateExpiryEndpointClosesOverdue(t *testing.T) {
	conn := setupAdminTestDB(t)

	overdue := models.Campaign{
		ClubID: 1, Title: "late", GoalCents: 10000,
		Deadline: time.Now().UTC().Add(-time.Hour), Status: models.CampaignStatusActive,
	}
	if errCreate := conn.Create(&overdue).Error; errCreate != nil {
		t.Fatalf("create campaign: %v", errCreate)
	}

	h := NewCampaignAdminHandler(conn, funding.NewTracker(conn))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v0/admin/campaigns/evaluate-expiry", nil)

	h.EvaluateExpiry(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var reloaded models.Campaign
	if errFind := conn.First(&reloaded, overdue.ID).Error; errFind != nil {
		t.Fatalf("reload campaign: %v", errFind)
	}
	if reloaded.Status != models.CampaignStatusExpired {
		t.Fatalf("status = %s, want expired (nothing contributed)", reloaded.Status)
	}
}

func TestEconomyUpdatePersistsAndRefreshes(t *testing.T) {
	conn := setupAdminTestDB(t)
	defer settings.StoreDBConfig(time.Now(), nil)

	h := NewEconomyHandler(conn)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	body := `{"tier_thresholds":{"cadet":0,"resident":100,"headliner":200,"superfan":300}}`
	c.Request = httptest.NewRequest(http.MethodPut, "/v0/admin/clubs/5/economy", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Update(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := settings.TierThresholdsFor(5)[status.TierSuperfan]; got != 300 {
		t.Fatalf("snapshot superfan threshold = %d, want 300 after update", got)
	}

	var row models.Setting
	if errFind := conn.Where("key = ?", settings.TierThresholdsKey(5)).First(&row).Error; errFind != nil {
		t.Fatalf("setting row not persisted: %v", errFind)
	}
}

func TestEconomyUpdateRejectsInvalidThresholds(t *testing.T) {
	conn := setupAdminTestDB(t)

	h := NewEconomyHandler(conn)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	body := `{"tier_thresholds":{"cadet":0,"resident":500,"headliner":400,"superfan":5000}}`
	c.Request = httptest.NewRequest(http.MethodPut, "/v0/admin/clubs/5/economy", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Update(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}
