package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureHeader carries base64(HMAC-SHA256(key, notificationURL + body)).
const SignatureHeader = "X-Square-Hmacsha256-Signature"

// WebhookVerifier checks notification signatures.
type WebhookVerifier struct {
	secret          string
	notificationURL string
}

func NewWebhookVerifier(secret, notificationURL string) *WebhookVerifier {
	return &WebhookVerifier{secret: strings.TrimSpace(secret), notificationURL: strings.TrimSpace(notificationURL)}
}

// Enabled is false when no signature key is configured.
func (v *WebhookVerifier) Enabled() bool {
	return v != nil && v.secret != ""
}

func (v *WebhookVerifier) Verify(body []byte, signature string) bool {
	if !v.Enabled() || strings.TrimSpace(signature) == "" {
		return false
	}
	expected := Sign(v.secret, v.notificationURL, body)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// Sign computes the Square notification signature.
func Sign(secret, notificationURL string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
