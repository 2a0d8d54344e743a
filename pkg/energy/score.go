package energy

import (
	"math"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/signals"
)

// NeutralScore is used for any input that is missing.
const NeutralScore = 0.5

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// SleepScore rates a night of sleep in [0,1] from duration against target,
// deep-sleep share against deepTarget, and efficiency. Missing components
// score neutral; a nil summary scores neutral overall.
func SleepScore(s *signals.SleepSummary, target time.Duration, deepTarget float64) float64 {
	if s == nil || s.Duration <= 0 {
		return NeutralScore
	}

	duration := clamp01(float64(s.Duration) / float64(target))

	deep := NeutralScore
	if s.DeepSleep > 0 && deepTarget > 0 {
		deep = clamp01((float64(s.DeepSleep) / float64(s.Duration)) / deepTarget)
	}

	efficiency := NeutralScore
	if s.Efficiency != nil {
		efficiency = clamp01(*s.Efficiency)
	}

	return 0.5*duration + 0.25*deep + 0.25*efficiency
}

// HRVScore rates current HRV against the personal baseline in [0,1].
// HRV at baseline scores 0.8; 25% above baseline saturates at 1.
func HRVScore(h *signals.HRVReading) float64 {
	if h == nil || h.Baseline <= 0 || h.Current <= 0 {
		return NeutralScore
	}
	return clamp01(0.8 * h.Current / h.Baseline)
}

// EnvironmentFactor converts an environment reading into a [0,1] load where
// 0 is comfortable. Unknown fields contribute no load.
func EnvironmentFactor(env *signals.EnvironmentSnapshot) float64 {
	if env == nil {
		return 0
	}

	var load float64
	if env.Temperature != nil {
		t := *env.Temperature
		switch {
		case t > 24:
			load += (t - 24) / 12
		case t < 16:
			load += (16 - t) / 20
		}
	}
	if env.Humidity != nil && *env.Humidity > 60 {
		load += (*env.Humidity - 60) / 80
	}
	if env.AirQuality != nil && *env.AirQuality > 50 {
		load += (*env.AirQuality - 50) / 150
	}
	if env.Pressure != nil && *env.Pressure < 1000 {
		load += (1000 - *env.Pressure) / 100
	}
	return clamp01(load)
}
