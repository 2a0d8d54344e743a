// Package signals defines the biometric and environmental inputs consumed by
// the energy model, plus simple file-backed and static providers.
package signals

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// SleepSummary describes last night's sleep.
type SleepSummary struct {
	Duration   time.Duration `json:"duration" yaml:"duration"`
	DeepSleep  time.Duration `json:"deep_sleep" yaml:"deep_sleep"`
	Efficiency *float64      `json:"efficiency,omitempty" yaml:"efficiency"` // 0..1
}

// HRVReading compares the current heart-rate variability to a personal baseline.
type HRVReading struct {
	Current  float64 `json:"current" yaml:"current"`   // ms
	Baseline float64 `json:"baseline" yaml:"baseline"` // ms
}

// Activity summarizes recent exertion.
type Activity struct {
	ActiveEnergy float64 `json:"active_energy" yaml:"active_energy"` // kcal over the last hour
	StressLevel  float64 `json:"stress_level" yaml:"stress_level"`   // 0..1
}

// HealthSnapshot is a point-in-time biometric reading. Any field may be nil.
type HealthSnapshot struct {
	Sleep            *SleepSummary `json:"sleep,omitempty" yaml:"sleep"`
	HRV              *HRVReading   `json:"hrv,omitempty" yaml:"hrv"`
	RestingHeartRate *float64      `json:"resting_heart_rate,omitempty" yaml:"resting_heart_rate"`
	Activity         *Activity     `json:"activity,omitempty" yaml:"activity"`
}

// EnvironmentSnapshot is a point-in-time weather and air-quality reading.
type EnvironmentSnapshot = model.EnvironmentFactors

// Location identifies where environment readings are taken.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// HealthSnapshotProvider supplies the latest biometric readings.
type HealthSnapshotProvider interface {
	Latest(ctx context.Context) (*HealthSnapshot, error)
}

// EnvironmentSnapshotProvider supplies current environmental readings.
type EnvironmentSnapshotProvider interface {
	Current(ctx context.Context, loc Location) (*EnvironmentSnapshot, error)
}

// StaticHealth always returns the same snapshot.
type StaticHealth struct {
	Snapshot *HealthSnapshot
	Err      error
}

func (s StaticHealth) Latest(context.Context) (*HealthSnapshot, error) {
	return s.Snapshot, s.Err
}

// StaticEnvironment always returns the same snapshot.
type StaticEnvironment struct {
	Snapshot *EnvironmentSnapshot
	Err      error
}

func (s StaticEnvironment) Current(context.Context, Location) (*EnvironmentSnapshot, error) {
	return s.Snapshot, s.Err
}
