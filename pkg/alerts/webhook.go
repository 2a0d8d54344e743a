package alerts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body, prefixed "sha256=".
const SignatureHeader = "X-Signature-256"

// WebhookNotifier posts alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier. A non-empty secret
// signs every request.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{url: url, secret: secret, client: newHTTPClient()}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Event:     string(alert.Kind),
		Level:     string(alert.Level),
		Timestamp: alertTime(alert).UTC().Format(time.RFC3339),
		Alert:     alert,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	header := http.Header{}
	if w.secret != "" {
		header.Set(SignatureHeader, "sha256="+Sign(body, w.secret))
	}
	if err := postJSON(ctx, w.client, w.url, body, header); err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	return nil
}

type webhookPayload struct {
	Event     string `json:"event"`
	Level     string `json:"level"`
	Timestamp string `json:"timestamp"`
	Alert     Alert  `json:"alert"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is a valid signature of body under secret.
func Verify(body []byte, secret, header string) bool {
	want := "sha256=" + Sign(body, secret)
	return hmac.Equal([]byte(want), []byte(header))
}
