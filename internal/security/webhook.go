package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyWebhookHMAC checks a webhook payload against the shared secret.
// An empty configured secret disables verification, for local
// development only.
func VerifyWebhookHMAC(secret string, body []byte, provided string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	cleaned := strings.TrimSpace(provided)
	cleaned = strings.TrimPrefix(strings.ToLower(cleaned), "sha256=")
	if cleaned == "" {
		return false
	}
	got, err := hex.DecodeString(cleaned)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// SignWebhookHMAC produces the hex signature for a payload. Used by
// tests and by outbound event delivery.
func SignWebhookHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
