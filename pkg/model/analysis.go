package model

import "time"

// Source tags which path produced an AnalysisResult.
type Source string

const (
	SourceStaticOnly Source = "static_only"
	SourceHybrid     Source = "hybrid"
	SourceCached     Source = "cached"
	SourceFallback   Source = "fallback"
	SourceAIError    Source = "ai_error"
)

// TagInsight is a short message scoped to one interest tag.
type TagInsight struct {
	Tag     Tag    `json:"tag"`
	Message string `json:"message"`
}

// StaticAnalysis is the locally computed baseline.
type StaticAnalysis struct {
	Headline        string       `json:"headline"`
	Level           float64      `json:"level"`
	State           BatteryState `json:"state"`
	Insights        []TagInsight `json:"insights,omitempty"`
	Actions         []string     `json:"actions"`
	HoursUntilLow   *float64     `json:"hours_until_low,omitempty"`
	HoursUntilEmpty *float64     `json:"hours_until_empty,omitempty"`
}

// EnhancedAnalysis is the remote-generated enhancement.
type EnhancedAnalysis struct {
	Headline    string       `json:"headline"`
	Insights    []TagInsight `json:"insights"`
	Actions     []string     `json:"actions"`
	Confidence  float64      `json:"confidence"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// AnalysisResult is what requestAnalysis returns.
// Enhanced is non-nil only for hybrid results (and cached copies of them).
type AnalysisResult struct {
	Source      Source            `json:"source"`
	Static      StaticAnalysis    `json:"static_analysis"`
	Enhanced    *EnhancedAnalysis `json:"enhanced_analysis,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	ValidUntil  time.Time         `json:"valid_until"`
}

// Consistent reports whether Source and Enhanced agree.
func (r AnalysisResult) Consistent() bool {
	switch r.Source {
	case SourceHybrid:
		return r.Enhanced != nil
	case SourceFallback, SourceStaticOnly, SourceAIError:
		return r.Enhanced == nil
	default:
		return true
	}
}
