package model

import (
	"slices"
	"time"
)

// Tag is an interest category attached to an analysis request.
type Tag string

const (
	TagSleep     Tag = "sleep"
	TagActivity  Tag = "activity"
	TagNutrition Tag = "nutrition"
	TagStress    Tag = "stress"
	TagFocus     Tag = "focus"
	TagOutdoor   Tag = "outdoor"
)

// KnownTags lists every recognized tag in canonical order.
var KnownTags = []Tag{TagSleep, TagActivity, TagNutrition, TagStress, TagFocus, TagOutdoor}

// Valid reports whether t is a recognized tag.
func (t Tag) Valid() bool {
	return slices.Contains(KnownTags, t)
}

// NormalizeTags drops unknown and duplicate tags and sorts the rest.
func NormalizeTags(tags []Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Valid() && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// TimeBucket is a coarse part of the day.
type TimeBucket string

const (
	BucketMorning   TimeBucket = "morning"
	BucketAfternoon TimeBucket = "afternoon"
	BucketEvening   TimeBucket = "evening"
	BucketNight     TimeBucket = "night"
)

// BucketFor returns the time bucket containing t (in t's location).
func BucketFor(t time.Time) TimeBucket {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return BucketMorning
	case h >= 12 && h < 17:
		return BucketAfternoon
	case h >= 17 && h < 22:
		return BucketEvening
	default:
		return BucketNight
	}
}

// EnvironmentFactors are the environmental readings relevant to analysis.
// Nil fields are unknown.
type EnvironmentFactors struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"` // celsius
	Humidity    *float64 `json:"humidity,omitempty" yaml:"humidity"`       // percent
	Pressure    *float64 `json:"pressure,omitempty" yaml:"pressure"`       // hPa
	AirQuality  *float64 `json:"air_quality,omitempty" yaml:"air_quality"` // AQI
}

// EnvironmentBucket is a coarse classification of EnvironmentFactors.
type EnvironmentBucket string

const (
	EnvUnknown     EnvironmentBucket = "unknown"
	EnvComfortable EnvironmentBucket = "comfortable"
	EnvHot         EnvironmentBucket = "hot"
	EnvCold        EnvironmentBucket = "cold"
	EnvHumid       EnvironmentBucket = "humid"
	EnvPoorAir     EnvironmentBucket = "poor_air"
)

// Bucket classifies the environment. Air quality dominates temperature,
// which dominates humidity.
func (e EnvironmentFactors) Bucket() EnvironmentBucket {
	if e.AirQuality != nil && *e.AirQuality > 100 {
		return EnvPoorAir
	}
	if e.Temperature != nil {
		switch {
		case *e.Temperature >= 30:
			return EnvHot
		case *e.Temperature <= 5:
			return EnvCold
		}
	}
	if e.Humidity != nil && *e.Humidity >= 80 {
		return EnvHumid
	}
	if e.Temperature == nil && e.Humidity == nil && e.AirQuality == nil {
		return EnvUnknown
	}
	return EnvComfortable
}

// AnalysisContext is the input to a single analysis request.
type AnalysisContext struct {
	UserID      string             `json:"user_id"`
	Battery     BatterySnapshot    `json:"battery"`
	Tags        []Tag              `json:"tags"`
	TimeBucket  TimeBucket         `json:"time_bucket"`
	Environment EnvironmentFactors `json:"environment"`
}
