package alerts_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ogulcanaydogan/energy-advisor/pkg/alerts"
)

func TestWebhookNotifier_Name(t *testing.T) {
	n := alerts.NewWebhookNotifier("https://example.com/webhook", "")
	assert.Equal(t, "webhook", n.Name())
}

func TestWebhookNotifier_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "energy-advisor/1.0", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "")
	err := n.Send(context.Background(), alerts.Alert{
		Kind:    alerts.KindCircuitOpened,
		Level:   alerts.AlertCritical,
		Subject: "anthropic:claude-haiku-4-5",
		Message: "Remote analysis circuit opened",
	})
	require.NoError(t, err)
	assert.Equal(t, "circuit_opened", received["event"])
	assert.NotEmpty(t, received["timestamp"])

	alert, ok := received["alert"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "anthropic:claude-haiku-4-5", alert["subject"])
}

func TestWebhookNotifier_Signature(t *testing.T) {
	var signature string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Signature-256")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "test-secret")
	require.NoError(t, n.Send(context.Background(), alerts.Alert{Level: alerts.AlertWarning}))
	assert.Equal(t, "sha256="+alerts.Sign(body, "test-secret"), signature)
}

func TestWebhookNotifier_NoSignatureWithoutSecret(t *testing.T) {
	var hasSignature bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasSignature = r.Header.Get("X-Signature-256") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, alerts.NewWebhookNotifier(server.URL, "").Send(context.Background(), alerts.Alert{}))
	assert.False(t, hasSignature)
}

func TestWebhookNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := alerts.NewWebhookNotifier(server.URL, "").Send(context.Background(), alerts.Alert{})
	assert.ErrorContains(t, err, "status 503")
}

func TestWebhookNotifier_RetriesTransientStatusOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, alerts.NewWebhookNotifier(server.URL, "").Send(context.Background(), alerts.Alert{}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookNotifier_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := alerts.NewWebhookNotifier(server.URL, "").Send(context.Background(), alerts.Alert{})
	assert.ErrorContains(t, err, "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"circuit_opened"}`)
	sig := "sha256=" + alerts.Sign(body, "s3cret")

	assert.True(t, alerts.Verify(body, "s3cret", sig))
	assert.False(t, alerts.Verify(body, "other", sig))
	assert.False(t, alerts.Verify([]byte(`{}`), "s3cret", sig))
}
