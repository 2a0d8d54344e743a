package energy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ogulcanaydogan/energy-advisor/pkg/energy"
	"github.com/ogulcanaydogan/energy-advisor/pkg/signals"
)

func TestSleepScore(t *testing.T) {
	tests := []struct {
		name     string
		sleep    *signals.SleepSummary
		expected float64
	}{
		{"nil", nil, 0.5},
		{"zero duration", &signals.SleepSummary{}, 0.5},
		{"ideal", &signals.SleepSummary{Duration: 8 * time.Hour, DeepSleep: 2 * time.Hour, Efficiency: fptr(1)}, 1.0},
		{"short night", &signals.SleepSummary{Duration: 4 * time.Hour, DeepSleep: 48 * time.Minute, Efficiency: fptr(0.8)}, 0.25 + 0.25 + 0.2},
		{"no deep or efficiency data", &signals.SleepSummary{Duration: 8 * time.Hour}, 0.5 + 0.125 + 0.125},
		{"oversleep capped", &signals.SleepSummary{Duration: 11 * time.Hour, DeepSleep: 3 * time.Hour, Efficiency: fptr(1.4)}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, energy.SleepScore(tt.sleep, 8*time.Hour, 0.20), 1e-9)
		})
	}
}

func TestHRVScore(t *testing.T) {
	assert.InDelta(t, 0.5, energy.HRVScore(nil), 1e-9)
	assert.InDelta(t, 0.5, energy.HRVScore(&signals.HRVReading{Current: 40}), 1e-9)
	assert.InDelta(t, 0.8, energy.HRVScore(&signals.HRVReading{Current: 50, Baseline: 50}), 1e-9)
	assert.InDelta(t, 0.4, energy.HRVScore(&signals.HRVReading{Current: 25, Baseline: 50}), 1e-9)
	assert.InDelta(t, 1.0, energy.HRVScore(&signals.HRVReading{Current: 90, Baseline: 50}), 1e-9)
}

func TestEnvironmentFactor(t *testing.T) {
	assert.Equal(t, 0.0, energy.EnvironmentFactor(nil))
	assert.Equal(t, 0.0, energy.EnvironmentFactor(&signals.EnvironmentSnapshot{}))
	assert.Equal(t, 0.0, energy.EnvironmentFactor(&signals.EnvironmentSnapshot{Temperature: fptr(21), Humidity: fptr(50), AirQuality: fptr(30)}))
	assert.InDelta(t, 0.5, energy.EnvironmentFactor(&signals.EnvironmentSnapshot{Temperature: fptr(30)}), 1e-9)
	assert.InDelta(t, 1.0, energy.EnvironmentFactor(&signals.EnvironmentSnapshot{Temperature: fptr(40), AirQuality: fptr(200)}), 1e-9)
}
