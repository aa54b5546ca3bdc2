package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/cart"
	dbpkg "github.com/superfanlabs/fanclub/internal/db"
	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/reconcile"
	"github.com/superfanlabs/fanclub/internal/security"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

func setupHookRouter(t *testing.T, cardSecret, chainSecret string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	r := gin.New()
	RegisterHookRoutes(r, Deps{
		DB:                 conn,
		Worker:             reconcile.NewWorker(conn, wallet.NewLedger(conn), funding.NewTracker(conn)),
		CardWebhookSecret:  cardSecret,
		ChainWebhookSecret: chainSecret,
	})
	return r, conn
}

// seedPendingCredits records the pending row a checkout would leave
// behind: a single credits line awaiting rail confirmation.
func seedPendingCredits(t *testing.T, conn *gorm.DB, ref, rail string, credits int64) {
	t.Helper()
	lines := []cart.Line{
		{ID: "l1", Kind: cart.KindCredits, UnitCredits: credits, Quantity: 1},
	}
	snapshot, errMarshal := json.Marshal(lines)
	if errMarshal != nil {
		t.Fatalf("marshal snapshot: %v", errMarshal)
	}
	row := models.Transaction{
		IdempotencyKey: ref,
		Rail:           rail,
		ClubID:         1,
		MemberID:       7,
		AmountCents:    credits * 100,
		ExternalRef:    ref,
		State:          models.TxStatePending,
		CartSnapshot:   datatypes.JSON(snapshot),
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("create pending transaction: %v", errCreate)
	}
}

func TestChainHookConfirmsPendingTransfer(t *testing.T) {
	r, conn := setupHookRouter(t, "", "watchersecret")
	seedPendingCredits(t, conn, "chk_abc", models.RailStablecoin, 40)

	body := []byte(`{"reference":"chk_abc","tx_hash":"0xdeadbeef"}`)
	deliver := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v0/hooks/chain", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(signatureHeader, security.SignWebhookHMAC("watchersecret", body))
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := deliver(); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	// Watcher retries must be harmless.
	if rec := deliver(); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on replay, got %d body=%s", rec.Code, rec.Body.String())
	}

	balance, errGet := wallet.NewLedger(conn).Get(context.Background(), 1, 7)
	if errGet != nil {
		t.Fatalf("get wallet: %v", errGet)
	}
	if balance.PurchasedPoints != 40 {
		t.Fatalf("purchased points = %d, want 40 (credited exactly once)", balance.PurchasedPoints)
	}

	var row models.Transaction
	if errFind := conn.Where("idempotency_key = ?", "chk_abc").First(&row).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	if row.State != models.TxStateConfirmed {
		t.Fatalf("state = %s, want confirmed", row.State)
	}
	if row.ChainTxHash != "0xdeadbeef" {
		t.Fatalf("chain_tx_hash = %s, want 0xdeadbeef", row.ChainTxHash)
	}
}

func TestChainHookUnknownReference(t *testing.T) {
	r, _ := setupHookRouter(t, "", "watchersecret")

	body := []byte(`{"reference":"nope"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/hooks/chain", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, security.SignWebhookHMAC("watchersecret", body))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestChainHookRejectsUnsignedEvent(t *testing.T) {
	r, conn := setupHookRouter(t, "", "watchersecret")
	seedPendingCredits(t, conn, "chk_steal", models.RailStablecoin, 40)

	// A member learns their own checkout reference from the charge
	// instructions; posting it without the watcher's signature must not
	// credit anything.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/hooks/chain",
		strings.NewReader(`{"reference":"chk_steal","tx_hash":"0xfake"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rec.Code, rec.Body.String())
	}

	var row models.Transaction
	if errFind := conn.Where("idempotency_key = ?", "chk_steal").First(&row).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	if row.State != models.TxStatePending {
		t.Fatalf("state = %s, want pending (unsigned confirmation must not apply)", row.State)
	}
	if _, errGet := wallet.NewLedger(conn).Get(context.Background(), 1, 7); errGet == nil {
		t.Fatal("wallet exists, expected no credit from unsigned confirmation")
	}
}

func TestCardHookRejectsBadSignature(t *testing.T) {
	r, conn := setupHookRouter(t, "topsecret", "")
	seedPendingCredits(t, conn, "sess_1", models.RailCard, 10)

	body := `{"session_id":"sess_1","status":"succeeded"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/hooks/card", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, "sha256=0000")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rec.Code, rec.Body.String())
	}

	var row models.Transaction
	if errFind := conn.Where("idempotency_key = ?", "sess_1").First(&row).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	if row.State != models.TxStatePending {
		t.Fatalf("state = %s, want pending (unsigned event must not apply)", row.State)
	}
}

func TestCardHookAppliesSignedSuccessEvent(t *testing.T) {
	r, conn := setupHookRouter(t, "topsecret", "")
	seedPendingCredits(t, conn, "sess_2", models.RailCard, 30)

	body := []byte(`{"session_id":"sess_2","status":"succeeded"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/hooks/card", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, security.SignWebhookHMAC("topsecret", body))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	balance, errGet := wallet.NewLedger(conn).Get(context.Background(), 1, 7)
	if errGet != nil {
		t.Fatalf("get wallet: %v", errGet)
	}
	if balance.PurchasedPoints != 30 {
		t.Fatalf("purchased points = %d, want 30", balance.PurchasedPoints)
	}
}

func TestCardHookIgnoresNonSuccessStatus(t *testing.T) {
	r, conn := setupHookRouter(t, "topsecret", "")
	seedPendingCredits(t, conn, "sess_3", models.RailCard, 15)

	body := []byte(`{"session_id":"sess_3","status":"canceled"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/hooks/card", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, security.SignWebhookHMAC("topsecret", body))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var row models.Transaction
	if errFind := conn.Where("idempotency_key = ?", "sess_3").First(&row).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	if row.State != models.TxStatePending {
		t.Fatalf("state = %s, want pending (the sweeper owns canceled sessions)", row.State)
	}
}
