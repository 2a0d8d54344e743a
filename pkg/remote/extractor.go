package remote

import "encoding/json"

// envelope is the HTTP service's response body. Usage is accepted in either
// input/output or prompt/completion naming.
type envelope struct {
	Analysis json.RawMessage `json:"analysis"`
	Model    string          `json:"model"`
	Usage    usageFields     `json:"usage"`
}

type usageFields struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

func (u usageFields) normalize() Usage {
	out := Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
	if out.InputTokens == 0 {
		out.InputTokens = u.PromptTokens
	}
	if out.OutputTokens == 0 {
		out.OutputTokens = u.CompletionTokens
	}
	return out
}

// parseEnvelope splits a response body into the analysis JSON and usage.
// A body without an "analysis" key is treated as the bare analysis.
func parseEnvelope(body []byte) (analysis []byte, usage Usage, model string, err error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, Usage{}, "", err
	}
	if len(env.Analysis) == 0 || string(env.Analysis) == "null" {
		return body, env.Usage.normalize(), env.Model, nil
	}
	return env.Analysis, env.Usage.normalize(), env.Model, nil
}
