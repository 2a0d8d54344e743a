// Package remote talks to the analysis service that enhances the static
// baseline. Responses that fail schema validation are reported as
// reliability.MalformedResponseError.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// SystemPrompt frames the remote model's task and response contract.
const SystemPrompt = `You are an energy coach. Given the user's battery state, interest tags and
context, reply with a single JSON object and nothing else:
{"headline": string, "insights": [{"tag": string, "message": string}],
 "actions": [string], "confidence": number between 0 and 1,
 "generated_at": RFC3339 timestamp}
Only use tags that appear in the request.`

// Request is the minimal context shipped to the remote service.
type Request struct {
	RequestID   string                   `json:"request_id"`
	Battery     BatteryPayload           `json:"battery"`
	Tags        []model.Tag              `json:"tags"`
	TimeBucket  model.TimeBucket         `json:"time_bucket"`
	Environment model.EnvironmentBucket  `json:"environment"`
	Readings    model.EnvironmentFactors `json:"readings"`
	Baseline    string                   `json:"baseline_headline"`
}

// BatteryPayload is the battery part of a Request.
type BatteryPayload struct {
	Level         float64            `json:"level"`
	State         model.BatteryState `json:"state"`
	DrainRate     float64            `json:"drain_rate"`
	MorningCharge float64            `json:"morning_charge"`
}

// NewRequest builds the payload for an analysis context.
func NewRequest(fingerprint string, actx model.AnalysisContext, static model.StaticAnalysis) Request {
	return Request{
		RequestID: fingerprint,
		Battery: BatteryPayload{
			Level:         actx.Battery.CurrentLevel,
			State:         actx.Battery.State(),
			DrainRate:     actx.Battery.DrainRate,
			MorningCharge: actx.Battery.MorningCharge,
		},
		Tags:        model.NormalizeTags(actx.Tags),
		TimeBucket:  actx.TimeBucket,
		Environment: actx.Environment.Bucket(),
		Readings:    actx.Environment,
		Baseline:    static.Headline,
	}
}

// Prompt renders the request as the user message text.
func (r Request) Prompt() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode analysis request: %w", err)
	}
	return string(b), nil
}

// Usage is the token usage reported for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is a validated enhancement plus billing data.
type Response struct {
	Analysis model.EnhancedAnalysis
	Usage    Usage
	Provider string
	Model    string
}

// Service is a remote analysis backend.
type Service interface {
	// Analyze performs one remote call. Timeouts and transport failures are
	// returned as *reliability.TransientRemoteError; schema failures as
	// *reliability.MalformedResponseError.
	Analyze(ctx context.Context, req Request) (*Response, error)

	// Endpoint identifies the backend for circuit breaking.
	Endpoint() string

	// Provider and Model name the pricing entry for this backend.
	Provider() string
	Model() string
}
