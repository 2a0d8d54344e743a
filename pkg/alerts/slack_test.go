package alerts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ogulcanaydogan/energy-advisor/pkg/alerts"
)

func TestSlackNotifier_Name(t *testing.T) {
	n := alerts.NewSlackNotifier("https://hooks.slack.com/test", "#test")
	assert.Equal(t, "slack", n.Name())
}

func TestSlackNotifier_Send(t *testing.T) {
	var received struct {
		Channel     string `json:"channel"`
		Attachments []struct {
			Color  string `json:"color"`
			Title  string `json:"title"`
			Fields []struct {
				Title string `json:"title"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#energy")
	err := n.Send(context.Background(), alerts.Alert{
		Kind:    alerts.KindBudgetExhausted,
		Level:   alerts.AlertWarning,
		Subject: "u1",
		Message: "Daily analysis budget used up",
		Fields:  map[string]string{"spent": "10.00", "cap": "10.00"},
	})
	require.NoError(t, err)

	assert.Equal(t, "#energy", received.Channel)
	require.Len(t, received.Attachments, 1)
	att := received.Attachments[0]
	assert.Equal(t, "#ff9900", att.Color)
	assert.Contains(t, att.Title, "Daily analysis budget")
	require.Len(t, att.Fields, 4)
	assert.Equal(t, "cap", att.Fields[2].Title, "extra fields sorted by key")
	assert.Equal(t, "spent", att.Fields[3].Title)
}

func TestSlackNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#test")
	err := n.Send(context.Background(), alerts.Alert{Level: alerts.AlertWarning})
	assert.ErrorContains(t, err, "status 500")
}

func TestSlackNotifier_LevelColors(t *testing.T) {
	tests := []struct {
		level alerts.AlertLevel
		color string
	}{
		{alerts.AlertInfo, "#36a64f"},
		{alerts.AlertWarning, "#ff9900"},
		{alerts.AlertCritical, "#cc0000"},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var p struct {
					Attachments []struct {
						Color string `json:"color"`
					} `json:"attachments"`
				}
				_ = json.NewDecoder(r.Body).Decode(&p)
				if len(p.Attachments) > 0 {
					got = p.Attachments[0].Color
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			require.NoError(t, alerts.NewSlackNotifier(server.URL, "").Send(context.Background(), alerts.Alert{Level: tt.level}))
			assert.Equal(t, tt.color, got)
		})
	}
}

func TestSlackNotifier_Unreachable(t *testing.T) {
	n := alerts.NewSlackNotifier("http://127.0.0.1:1/hook", "")
	assert.Error(t, n.Send(context.Background(), alerts.Alert{}))
}
