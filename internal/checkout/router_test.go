package checkout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/models"
)

const testRecipient = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

type fakeGateway struct {
	sessions int
	fail     bool
}

func (g *fakeGateway) CreateSession(_ context.Context, params CreateSessionParams) (CardSession, error) {
	if g.fail {
		return CardSession{}, apperr.New(apperr.KindExternalRail, "checkout: gateway down")
	}
	g.sessions++
	return CardSession{
		SessionID:   fmt.Sprintf("sess_%d_%d", params.AmountCents, g.sessions),
		RedirectURL: "https://pay.example.com/s/" + params.Reference,
	}, nil
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Transaction{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func testCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := &cart.Cart{ClubID: 1, MemberID: 7}
	if errAdd := c.AddLine(cart.Line{ID: "l1", Kind: cart.KindCredits, UnitCredits: 25, Quantity: 2}); errAdd != nil {
		t.Fatalf("add line: %v", errAdd)
	}
	if errAdd := c.AddLine(cart.Line{ID: "l2", Kind: cart.KindItem, UnitAmountCents: 1500, Quantity: 1}); errAdd != nil {
		t.Fatalf("add line: %v", errAdd)
	}
	return c
}

func TestRoute_CardRailForGenericWeb(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &fakeGateway{}
	router := NewRouter(db, gateway, ChainConfig{RecipientAddress: testRecipient})
	c := testCart(t)

	charge, errRoute := router.Route(context.Background(), c, RailContext{WalletApp: false})
	if errRoute != nil {
		t.Fatalf("route: %v", errRoute)
	}
	if charge.Rail != models.RailCard {
		t.Fatalf("rail = %s, want card", charge.Rail)
	}
	if charge.AmountCents != 6500 {
		t.Fatalf("amount = %d, want 6500", charge.AmountCents)
	}
	if gateway.sessions != 1 {
		t.Fatalf("gateway sessions = %d, want exactly 1 aggregate charge", gateway.sessions)
	}
	if !c.Locked() || c.LockedRef != charge.Reference {
		t.Fatalf("cart not locked to charge reference")
	}

	var txRecord models.Transaction
	if errFind := db.Where("idempotency_key = ?", charge.Reference).First(&txRecord).Error; errFind != nil {
		t.Fatalf("pending transaction not recorded: %v", errFind)
	}
	if txRecord.State != models.TxStatePending {
		t.Fatalf("transaction state = %s, want pending", txRecord.State)
	}
	if txRecord.AmountCents != 6500 {
		t.Fatalf("transaction amount = %d, want 6500", txRecord.AmountCents)
	}
}

func TestRoute_StablecoinRailForWalletApp(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	router := NewRouter(db, &fakeGateway{}, ChainConfig{RecipientAddress: testRecipient, TokenSymbol: "USDC"})
	c := testCart(t)

	charge, errRoute := router.Route(context.Background(), c, RailContext{WalletApp: true})
	if errRoute != nil {
		t.Fatalf("route: %v", errRoute)
	}
	if charge.Rail != models.RailStablecoin {
		t.Fatalf("rail = %s, want stablecoin", charge.Rail)
	}
	// 6500 cents at 6 token decimals: 6500 * 10^4 base units.
	if charge.TokenBaseUnits != "65000000" {
		t.Fatalf("token base units = %s, want 65000000", charge.TokenBaseUnits)
	}
	if charge.Recipient != testRecipient {
		t.Fatalf("recipient = %s, want %s", charge.Recipient, testRecipient)
	}
}

func TestRoute_WalletAppFallsBackToCardWithoutChainConfig(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &fakeGateway{}
	router := NewRouter(db, gateway, ChainConfig{})
	c := testCart(t)

	charge, errRoute := router.Route(context.Background(), c, RailContext{WalletApp: true})
	if errRoute != nil {
		t.Fatalf("route: %v", errRoute)
	}
	if charge.Rail != models.RailCard {
		t.Fatalf("rail = %s, want card fallback", charge.Rail)
	}
}

func TestRoute_InvalidRecipientRejected(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	router := NewRouter(db, &fakeGateway{}, ChainConfig{RecipientAddress: "not-an-address"})
	c := testCart(t)

	_, errRoute := router.Route(context.Background(), c, RailContext{WalletApp: true})
	if apperr.KindOf(errRoute) != apperr.KindValidation {
		t.Fatalf("kind = %v, want validation", apperr.KindOf(errRoute))
	}
	if c.Locked() {
		t.Fatalf("cart locked after failed routing")
	}
}

func TestRoute_EmptyCartRejected(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	router := NewRouter(db, &fakeGateway{}, ChainConfig{})

	_, errRoute := router.Route(context.Background(), &cart.Cart{ClubID: 1, MemberID: 7}, RailContext{})
	if apperr.KindOf(errRoute) != apperr.KindValidation {
		t.Fatalf("kind = %v, want validation", apperr.KindOf(errRoute))
	}
}

func TestRoute_GatewayFailureLeavesCartRetryable(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	router := NewRouter(db, &fakeGateway{fail: true}, ChainConfig{})
	c := testCart(t)

	_, errRoute := router.Route(context.Background(), c, RailContext{})
	if apperr.KindOf(errRoute) != apperr.KindExternalRail {
		t.Fatalf("kind = %v, want external rail", apperr.KindOf(errRoute))
	}
	if c.Locked() {
		t.Fatalf("cart locked after gateway failure")
	}

	var count int64
	if errCount := db.Model(&models.Transaction{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("pending transaction recorded despite gateway failure")
	}
}

func TestRoute_SecondAttemptWhileInFlightConflicts(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	router := NewRouter(db, &fakeGateway{}, ChainConfig{})
	c := testCart(t)

	if _, errRoute := router.Route(context.Background(), c, RailContext{}); errRoute != nil {
		t.Fatalf("route: %v", errRoute)
	}
	_, errRoute := router.Route(context.Background(), c, RailContext{})
	if apperr.KindOf(errRoute) != apperr.KindConflict {
		t.Fatalf("kind = %v, want conflict", apperr.KindOf(errRoute))
	}
}

func TestAbandon_UnlocksAndKeepsReference(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	router := NewRouter(db, &fakeGateway{}, ChainConfig{})
	c := testCart(t)

	charge, errRoute := router.Route(context.Background(), c, RailContext{})
	if errRoute != nil {
		t.Fatalf("route: %v", errRoute)
	}
	if errAbandon := router.Abandon(context.Background(), c); errAbandon != nil {
		t.Fatalf("abandon: %v", errAbandon)
	}
	if c.Locked() {
		t.Fatalf("cart still locked after abandon")
	}
	if len(c.Lines) != 2 {
		t.Fatalf("lines = %d after abandon, want 2", len(c.Lines))
	}

	// The external reference survives for audit even though the attempt
	// failed.
	var txRecord models.Transaction
	if errFind := db.Where("idempotency_key = ?", charge.Reference).First(&txRecord).Error; errFind != nil {
		t.Fatalf("transaction lost on abandon: %v", errFind)
	}
	if txRecord.State != models.TxStateFailed {
		t.Fatalf("state = %s after abandon, want failed", txRecord.State)
	}
}
