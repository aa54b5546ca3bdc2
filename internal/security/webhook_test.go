package security

import "testing"

func TestVerifyWebhookHMAC(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	body := []byte(`{"session_id":"sess_1","status":"succeeded"}`)
	signature := SignWebhookHMAC(secret, body)

	if !VerifyWebhookHMAC(secret, body, signature) {
		t.Fatalf("valid signature rejected")
	}
	if !VerifyWebhookHMAC(secret, body, "sha256="+signature) {
		t.Fatalf("prefixed signature rejected")
	}
	if VerifyWebhookHMAC(secret, body, "deadbeef") {
		t.Fatalf("wrong signature accepted")
	}
	if VerifyWebhookHMAC(secret, []byte(`tampered`), signature) {
		t.Fatalf("tampered body accepted")
	}
	if VerifyWebhookHMAC(secret, body, "") {
		t.Fatalf("empty signature accepted")
	}
	if !VerifyWebhookHMAC("", body, "") {
		t.Fatalf("verification should be disabled with no secret")
	}
}
