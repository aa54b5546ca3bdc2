package discount

import (
	"testing"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/status"
)

func TestForTier_TwentyPercent(t *testing.T) {
	t.Parallel()

	quote, errQuote := ForTier(DefaultTable(), status.TierSuperfan, 10000)
	if errQuote != nil {
		t.Fatalf("quote: %v", errQuote)
	}
	if quote.DiscountCents != 2000 {
		t.Fatalf("discount = %d, want 2000", quote.DiscountCents)
	}
	if quote.FinalPriceCents != 8000 {
		t.Fatalf("final = %d, want 8000", quote.FinalPriceCents)
	}
}

func TestForTier_Rounding(t *testing.T) {
	t.Parallel()

	// 5% of 1049 cents is 52.45; rounds half up to 52.
	quote, errQuote := ForTier(DefaultTable(), status.TierResident, 1049)
	if errQuote != nil {
		t.Fatalf("quote: %v", errQuote)
	}
	if quote.DiscountCents != 52 {
		t.Fatalf("discount = %d, want 52", quote.DiscountCents)
	}
	if quote.BasePriceCents != quote.DiscountCents+quote.FinalPriceCents {
		t.Fatalf("quote does not sum back to base: %+v", quote)
	}
}

func TestForTier_UnlistedTierGetsNoDiscount(t *testing.T) {
	t.Parallel()

	quote, errQuote := ForTier(Table{}, status.TierSuperfan, 700)
	if errQuote != nil {
		t.Fatalf("quote: %v", errQuote)
	}
	if quote.DiscountCents != 0 || quote.FinalPriceCents != 700 {
		t.Fatalf("expected undiscounted quote, got %+v", quote)
	}
}

func TestForTier_InvalidBasePrice(t *testing.T) {
	t.Parallel()

	for _, base := range []int64{0, -100} {
		_, errQuote := ForTier(DefaultTable(), status.TierCadet, base)
		if errQuote == nil {
			t.Fatalf("expected error for base price %d", base)
		}
		if apperr.KindOf(errQuote) != apperr.KindValidation {
			t.Fatalf("error kind = %v, want validation", apperr.KindOf(errQuote))
		}
	}
}

func TestForTier_InvalidRate(t *testing.T) {
	t.Parallel()

	over := Table{status.TierCadet: 10001}
	if _, errQuote := ForTier(over, status.TierCadet, 100); errQuote == nil {
		t.Fatalf("expected error for rate above 100%%")
	}

	negative := Table{status.TierCadet: -1}
	if _, errQuote := ForTier(negative, status.TierCadet, 100); errQuote == nil {
		t.Fatalf("expected error for negative rate")
	}
}
