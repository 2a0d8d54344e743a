package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

var levelColors = map[AlertLevel]string{
	AlertInfo:     "#36a64f",
	AlertWarning:  "#ff9900",
	AlertCritical: "#cc0000",
}

// SlackNotifier sends alerts to a Slack incoming webhook as one attachment.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, channel: channel, client: newHTTPClient()}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(slackMessage(s.channel, alert))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := postJSON(ctx, s.client, s.webhookURL, body, nil); err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	return nil
}

func slackMessage(channel string, alert Alert) slackPayload {
	color, ok := levelColors[alert.Level]
	if !ok {
		color = levelColors[AlertInfo]
	}

	fields := []slackField{
		{Title: "Kind", Value: string(alert.Kind), Short: true},
		{Title: "Subject", Value: alert.Subject, Short: true},
	}
	keys := make([]string, 0, len(alert.Fields))
	for k := range alert.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, slackField{Title: k, Value: alert.Fields[k], Short: true})
	}

	return slackPayload{
		Channel: channel,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  "Energy Advisor: " + alert.Message,
			Fields: fields,
			Footer: "Energy Advisor",
			Ts:     alertTime(alert).Unix(),
		}},
	}
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
