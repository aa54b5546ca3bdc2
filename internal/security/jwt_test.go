package security

import (
	"errors"
	"testing"
	"time"
)

func TestMemberTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, errGenerate := GenerateMemberToken("secret_a", 42, "fan42", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}

	claims, errParse := ParseMemberToken("secret_a", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.MemberID != 42 || claims.Username != "fan42" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, errWrong := ParseMemberToken("secret_b", token); !errors.Is(errWrong, ErrInvalidToken) {
		t.Fatalf("wrong secret error = %v, want ErrInvalidToken", errWrong)
	}
}

func TestMemberTokenExpiry(t *testing.T) {
	t.Parallel()

	token, errGenerate := GenerateMemberToken("secret_a", 42, "fan42", -time.Minute)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if _, errParse := ParseMemberToken("secret_a", token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expired error = %v, want ErrExpiredToken", errParse)
	}
}

func TestAdminTokenNotValidForMemberParse(t *testing.T) {
	t.Parallel()

	token, errGenerate := GenerateAdminToken("admin_secret", 1, "ops", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if _, errParse := ParseAdminToken("admin_secret", token); errParse != nil {
		t.Fatalf("admin parse: %v", errParse)
	}
	if _, errCross := ParseMemberToken("member_secret", token); !errors.Is(errCross, ErrInvalidToken) {
		t.Fatalf("cross parse error = %v, want ErrInvalidToken", errCross)
	}
}
