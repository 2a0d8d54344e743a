package model

import (
	"encoding/json"
	"math"
	"time"
)

// BatteryState is the qualitative band of a battery level.
type BatteryState string

const (
	StateHigh     BatteryState = "high"
	StateMedium   BatteryState = "medium"
	StateLow      BatteryState = "low"
	StateCritical BatteryState = "critical"
)

// Lower bounds (inclusive) of each band.
const (
	HighThreshold   = 70.0
	MediumThreshold = 40.0
	LowThreshold    = 20.0
)

// StateFor maps a battery level to its band.
func StateFor(level float64) BatteryState {
	switch {
	case level >= HighThreshold:
		return StateHigh
	case level >= MediumThreshold:
		return StateMedium
	case level >= LowThreshold:
		return StateLow
	default:
		return StateCritical
	}
}

// ClampLevel bounds a level to [0,100]. NaN collapses to 0.
func ClampLevel(level float64) float64 {
	if math.IsNaN(level) {
		return 0
	}
	return math.Max(0, math.Min(100, level))
}

// BatterySnapshot is a point-in-time view of the user's energy.
// State is never stored; it is always derived from CurrentLevel.
type BatterySnapshot struct {
	ID            string    `json:"id"`
	CurrentLevel  float64   `json:"current_level"`
	MorningCharge float64   `json:"morning_charge"`
	DrainRate     float64   `json:"drain_rate"` // percent per hour, negative when depleting
	LastUpdated   time.Time `json:"last_updated"`
}

// NewBatterySnapshot builds a snapshot with a clamped level.
func NewBatterySnapshot(id string, level, morningCharge, drainRate float64, at time.Time) BatterySnapshot {
	return BatterySnapshot{
		ID:            id,
		CurrentLevel:  ClampLevel(level),
		MorningCharge: ClampLevel(morningCharge),
		DrainRate:     drainRate,
		LastUpdated:   at,
	}
}

// State returns the band of the current level.
func (b BatterySnapshot) State() BatteryState {
	return StateFor(b.CurrentLevel)
}

// HoursUntil estimates hours until the level drops to target at the current
// drain rate. ok is false when the battery is not depleting or is already
// at or below target.
func (b BatterySnapshot) HoursUntil(target float64) (hours float64, ok bool) {
	if b.DrainRate >= 0 || b.CurrentLevel <= target {
		return 0, false
	}
	return (b.CurrentLevel - target) / -b.DrainRate, true
}

func (b BatterySnapshot) MarshalJSON() ([]byte, error) {
	type plain BatterySnapshot
	return json.Marshal(struct {
		plain
		State BatteryState `json:"state"`
	}{plain(b), b.State()})
}
