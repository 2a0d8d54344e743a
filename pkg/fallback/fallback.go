// Package fallback builds the locally computed analysis that every request
// carries, and the terminal result used when the remote path is skipped or
// fails.
package fallback

import (
	"fmt"
	"math"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// DefaultEpoch is how long an analysis stays valid.
const DefaultEpoch = 8 * time.Hour

const genericHeadline = "Keep an eye on how you feel today"

var genericActions = []string{
	"Drink a glass of water",
	"Take a short break away from screens",
}

// Generator produces static analyses. It is deterministic and never fails.
type Generator struct {
	epoch time.Duration
}

// NewGenerator creates a generator. A non-positive epoch uses DefaultEpoch.
func NewGenerator(epoch time.Duration) *Generator {
	if epoch <= 0 {
		epoch = DefaultEpoch
	}
	return &Generator{epoch: epoch}
}

// Epoch returns the validity window of generated results.
func (g *Generator) Epoch() time.Duration {
	return g.epoch
}

// Static computes the baseline analysis for a context. A context without a
// battery reading gets the generic message.
func (g *Generator) Static(actx model.AnalysisContext) model.StaticAnalysis {
	b := actx.Battery
	if b.LastUpdated.IsZero() || math.IsNaN(b.CurrentLevel) {
		return model.StaticAnalysis{
			Headline: genericHeadline,
			Level:    model.ClampLevel(b.CurrentLevel),
			State:    model.StateFor(model.ClampLevel(b.CurrentLevel)),
			Actions:  append([]string(nil), genericActions...),
			Insights: insightsFor(model.NormalizeTags(actx.Tags), ""),
		}
	}

	state := b.State()
	out := model.StaticAnalysis{
		Headline: headlines[state],
		Level:    round1(b.CurrentLevel),
		State:    state,
		Insights: insightsFor(model.NormalizeTags(actx.Tags), state),
		Actions:  actionsFor(state, actx.TimeBucket, actx.Environment.Bucket()),
	}
	if h, ok := b.HoursUntil(model.LowThreshold); ok {
		h = round1(h)
		out.HoursUntilLow = &h
	}
	if h, ok := b.HoursUntil(0); ok {
		h = round1(h)
		out.HoursUntilEmpty = &h
	}
	return out
}

// Generate returns a static-only result tagged with source. Sources that
// imply an enhancement are reported as fallback.
func (g *Generator) Generate(actx model.AnalysisContext, source model.Source, now time.Time) model.AnalysisResult {
	switch source {
	case model.SourceFallback, model.SourceStaticOnly, model.SourceAIError:
	default:
		source = model.SourceFallback
	}
	return g.Result(g.Static(actx), source, now)
}

// Result wraps an already computed static analysis.
func (g *Generator) Result(static model.StaticAnalysis, source model.Source, now time.Time) model.AnalysisResult {
	now = now.UTC()
	return model.AnalysisResult{
		Source:      source,
		Static:      static,
		GeneratedAt: now,
		ValidUntil:  now.Add(g.epoch),
	}
}

var headlines = map[model.BatteryState]string{
	model.StateHigh:     "You're running on a full tank",
	model.StateMedium:   "Steady energy, pace yourself",
	model.StateLow:      "Energy is getting low, plan a recharge",
	model.StateCritical: "Your battery is nearly empty, rest is the priority",
}

func actionsFor(state model.BatteryState, bucket model.TimeBucket, env model.EnvironmentBucket) []string {
	var actions []string
	switch state {
	case model.StateHigh:
		actions = append(actions, "Tackle your most demanding task now")
	case model.StateMedium:
		actions = append(actions, "Take a 10 minute walk between tasks")
	case model.StateLow:
		actions = append(actions, "Have a light snack and some water", "Postpone optional commitments")
	case model.StateCritical:
		actions = append(actions, "Stop and rest for at least 20 minutes", "Avoid intense exercise today")
	}

	if bucket == model.BucketEvening || bucket == model.BucketNight {
		actions = append(actions, "Dim the lights and wind down for sleep")
	}

	switch env {
	case model.EnvHot:
		actions = append(actions, "Stay hydrated and out of direct sun")
	case model.EnvCold:
		actions = append(actions, "Dress warmly before heading out")
	case model.EnvHumid:
		actions = append(actions, "Keep exertion moderate in the humidity")
	case model.EnvPoorAir:
		actions = append(actions, "Keep activity indoors, air quality is poor")
	}
	return actions
}

var tagMessages = map[model.Tag]string{
	model.TagSleep:     "A consistent bedtime is the fastest way to raise tomorrow's charge.",
	model.TagActivity:  "Movement drains energy now but improves recovery overnight.",
	model.TagNutrition: "Regular meals keep your drain rate steady.",
	model.TagStress:    "Short breathing breaks slow stress-driven drain.",
	model.TagFocus:     "Group deep work into one block while energy allows.",
	model.TagOutdoor:   "Daylight exposure helps regulate your energy rhythm.",
}

func insightsFor(tags []model.Tag, state model.BatteryState) []model.TagInsight {
	if len(tags) == 0 {
		return nil
	}
	out := make([]model.TagInsight, 0, len(tags))
	for _, t := range tags {
		msg := tagMessages[t]
		if state == model.StateLow || state == model.StateCritical {
			msg = fmt.Sprintf("%s Go easy today.", msg)
		}
		out = append(out, model.TagInsight{Tag: t, Message: msg})
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
