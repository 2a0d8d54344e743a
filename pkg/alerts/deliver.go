package alerts

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

const userAgent = "energy-advisor/1.0"

// deliveryRetry retries a notification once on a transient failure. Alerts
// are best effort, so the budget is much smaller than for analysis calls.
var deliveryRetry = reliability.RetryConfig{
	MaxAttempts:    2,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     time.Second,
	Multiplier:     2,
	JitterFraction: 0.2,
	AttemptTimeout: 5 * time.Second,
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON sends body to url, retrying 5xx, 429 and transport errors.
func postJSON(ctx context.Context, client *http.Client, target string, body []byte, header http.Header) error {
	return reliability.Do(ctx, deliveryRetry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			return reliability.NewTransientError(err, 0)
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		statusErr := fmt.Errorf("status %d", resp.StatusCode)
		if reliability.IsTransientHTTPStatus(resp.StatusCode) {
			return reliability.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	})
}

func alertTime(a Alert) time.Time {
	if a.Timestamp.IsZero() {
		return time.Now()
	}
	return a.Timestamp
}
