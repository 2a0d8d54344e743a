package model_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

func ptr(v float64) *float64 { return &v }

func TestStateFor(t *testing.T) {
	tests := []struct {
		level    float64
		expected model.BatteryState
	}{
		{100, model.StateHigh},
		{70, model.StateHigh},
		{69.9, model.StateMedium},
		{40, model.StateMedium},
		{39.9, model.StateLow},
		{20, model.StateLow},
		{19.9, model.StateCritical},
		{0, model.StateCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, model.StateFor(tt.level), "level %v", tt.level)
	}
}

func TestClampLevel(t *testing.T) {
	assert.Equal(t, 0.0, model.ClampLevel(-12))
	assert.Equal(t, 100.0, model.ClampLevel(140))
	assert.Equal(t, 55.5, model.ClampLevel(55.5))
	assert.Equal(t, 0.0, model.ClampLevel(math.NaN()))
}

func TestBatterySnapshot_JSONIncludesDerivedState(t *testing.T) {
	snap := model.NewBatterySnapshot("s1", 15, 80, -5, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "critical", decoded["state"])
	assert.Equal(t, 15.0, decoded["current_level"])

	var back model.BatterySnapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, snap.CurrentLevel, back.CurrentLevel)
	assert.Equal(t, model.StateCritical, back.State())
}

func TestBatterySnapshot_HoursUntil(t *testing.T) {
	snap := model.NewBatterySnapshot("", 60, 90, -5, time.Now())
	hours, ok := snap.HoursUntil(model.LowThreshold)
	require.True(t, ok)
	assert.InDelta(t, 8.0, hours, 1e-9)

	charging := model.NewBatterySnapshot("", 60, 90, 1, time.Now())
	_, ok = charging.HoursUntil(model.LowThreshold)
	assert.False(t, ok)
}

func TestNormalizeTags(t *testing.T) {
	got := model.NormalizeTags([]model.Tag{"stress", "bogus", "sleep", "stress"})
	assert.Equal(t, []model.Tag{model.TagSleep, model.TagStress}, got)
}

func TestBucketFor(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 1, 1, h, 30, 0, 0, time.UTC) }
	assert.Equal(t, model.BucketMorning, model.BucketFor(at(7)))
	assert.Equal(t, model.BucketAfternoon, model.BucketFor(at(13)))
	assert.Equal(t, model.BucketEvening, model.BucketFor(at(19)))
	assert.Equal(t, model.BucketNight, model.BucketFor(at(23)))
	assert.Equal(t, model.BucketNight, model.BucketFor(at(2)))
}

func TestEnvironmentFactors_Bucket(t *testing.T) {
	tests := []struct {
		name     string
		env      model.EnvironmentFactors
		expected model.EnvironmentBucket
	}{
		{"empty", model.EnvironmentFactors{}, model.EnvUnknown},
		{"comfortable", model.EnvironmentFactors{Temperature: ptr(21), Humidity: ptr(45)}, model.EnvComfortable},
		{"hot", model.EnvironmentFactors{Temperature: ptr(33)}, model.EnvHot},
		{"cold", model.EnvironmentFactors{Temperature: ptr(-2)}, model.EnvCold},
		{"humid", model.EnvironmentFactors{Temperature: ptr(22), Humidity: ptr(90)}, model.EnvHumid},
		{"poor air wins", model.EnvironmentFactors{Temperature: ptr(33), AirQuality: ptr(160)}, model.EnvPoorAir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.env.Bucket())
		})
	}
}

func TestAnalysisResult_Consistent(t *testing.T) {
	assert.True(t, model.AnalysisResult{Source: model.SourceHybrid, Enhanced: &model.EnhancedAnalysis{}}.Consistent())
	assert.False(t, model.AnalysisResult{Source: model.SourceHybrid}.Consistent())
	assert.False(t, model.AnalysisResult{Source: model.SourceFallback, Enhanced: &model.EnhancedAnalysis{}}.Consistent())
	assert.True(t, model.AnalysisResult{Source: model.SourceAIError}.Consistent())
}

func TestBudgetLedger_Remaining(t *testing.T) {
	assert.Equal(t, 4.0, model.BudgetLedger{SpentToday: 6, DailyCapUnits: 10}.Remaining())
	assert.Equal(t, 0.0, model.BudgetLedger{SpentToday: 12, DailyCapUnits: 10}.Remaining())
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	at := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC) // 22:00 on Mar 1 in New York
	start, end := model.DayBounds(at, loc)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 24*time.Hour, end.Sub(start))
	assert.Equal(t, "2026-03-01", model.DayKey(at, loc))
	assert.Equal(t, "2026-03-02", model.DayKey(at, nil))
	assert.False(t, model.SameDay(at, at.Add(3*time.Hour), loc))
}

func TestCacheEntry_Expired(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := model.CacheEntry{CreatedAt: created, TTL: time.Hour}

	assert.Equal(t, created.Add(time.Hour), e.ExpiresAt())
	assert.False(t, e.Expired(created.Add(59*time.Minute)))
	assert.True(t, e.Expired(created.Add(time.Hour)))
}
