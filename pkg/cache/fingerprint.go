package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// DefaultLevelBucket is the width of the battery level buckets.
const DefaultLevelBucket = 5.0

// Key identifies a cached analysis. Family is shared by contexts that differ
// only in battery level.
type Key struct {
	Fingerprint string  `json:"fingerprint"`
	Family      string  `json:"family"`
	Level       float64 `json:"level"`
}

// Keyer derives cache keys from analysis contexts.
type Keyer struct {
	bucket float64
}

// NewKeyer creates a keyer. A non-positive bucket uses DefaultLevelBucket.
func NewKeyer(levelBucket float64) Keyer {
	if levelBucket <= 0 {
		levelBucket = DefaultLevelBucket
	}
	return Keyer{bucket: levelBucket}
}

// Bucket rounds a level to the nearest bucket.
func (k Keyer) Bucket(level float64) float64 {
	return math.Round(model.ClampLevel(level)/k.bucket) * k.bucket
}

// Key fingerprints the semantically relevant fields of a context. Raw float
// readings never enter the hash; only their buckets do.
func (k Keyer) Key(actx model.AnalysisContext) Key {
	tags := model.NormalizeTags(actx.Tags)
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = string(t)
	}

	family := digest(
		"user="+actx.UserID,
		"tags="+strings.Join(names, ","),
		"time="+string(actx.TimeBucket),
		"env="+string(actx.Environment.Bucket()),
	)
	level := k.Bucket(actx.Battery.CurrentLevel)

	return Key{
		Fingerprint: digest(family, "level="+strconv.FormatFloat(level, 'f', 1, 64)),
		Family:      family,
		Level:       level,
	}
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
