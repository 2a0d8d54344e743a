package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

const (
	maxHeadline = 280
	maxActions  = 10
)

// Validate checks an enhancement against the response schema. requested
// lists the tags sent; insights about other tags are rejected. A nil
// requested allows any known tag.
func Validate(a *model.EnhancedAnalysis, requested []model.Tag) error {
	if a == nil {
		return reliability.NewMalformedError(errors.New("empty analysis"), "body")
	}
	if h := strings.TrimSpace(a.Headline); h == "" {
		return reliability.NewMalformedError(errors.New("headline is required"), "headline")
	} else if len(h) > maxHeadline {
		return reliability.NewMalformedError(fmt.Errorf("headline is %d bytes", len(h)), "headline")
	}

	if len(a.Actions) == 0 {
		return reliability.NewMalformedError(errors.New("at least one action is required"), "actions")
	}
	if len(a.Actions) > maxActions {
		return reliability.NewMalformedError(fmt.Errorf("%d actions", len(a.Actions)), "actions")
	}
	for i, act := range a.Actions {
		if strings.TrimSpace(act) == "" {
			return reliability.NewMalformedError(fmt.Errorf("action %d is empty", i), "actions")
		}
	}

	if math.IsNaN(a.Confidence) || a.Confidence < 0 || a.Confidence > 1 {
		return reliability.NewMalformedError(fmt.Errorf("confidence %v out of [0,1]", a.Confidence), "confidence")
	}

	if a.GeneratedAt.IsZero() {
		return reliability.NewMalformedError(errors.New("generated_at is required"), "generated_at")
	}

	allowed := make(map[model.Tag]bool, len(requested))
	for _, t := range requested {
		allowed[t] = true
	}
	for i, in := range a.Insights {
		if !in.Tag.Valid() || (requested != nil && !allowed[in.Tag]) {
			return reliability.NewMalformedError(fmt.Errorf("insight %d has unexpected tag %q", i, in.Tag), "insights")
		}
		if strings.TrimSpace(in.Message) == "" {
			return reliability.NewMalformedError(fmt.Errorf("insight %d is empty", i), "insights")
		}
	}
	return nil
}

// DecodeAnalysis parses and validates an enhancement. Non-JSON prose around
// the object, such as a markdown fence, is ignored.
func DecodeAnalysis(text []byte, requested []model.Tag) (model.EnhancedAnalysis, error) {
	var a model.EnhancedAnalysis

	obj, ok := extractObject(text)
	if !ok {
		return a, reliability.NewMalformedError(errors.New("no JSON object in response"), "body")
	}
	dec := json.NewDecoder(bytes.NewReader(obj))
	if err := dec.Decode(&a); err != nil {
		return a, reliability.NewMalformedError(fmt.Errorf("decode analysis: %w", err), "body")
	}
	if err := Validate(&a, requested); err != nil {
		return a, err
	}
	a.GeneratedAt = a.GeneratedAt.UTC().Truncate(time.Second)
	return a, nil
}

// extractObject returns the outermost {...} span of text.
func extractObject(text []byte) ([]byte, bool) {
	start := bytes.IndexByte(text, '{')
	end := bytes.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, false
	}
	return text[start : end+1], true
}
