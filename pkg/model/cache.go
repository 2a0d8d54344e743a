package model

import "time"

// CacheEntry is a stored analysis result.
// Family groups entries that differ only in battery level; Level is the
// bucketed level the fingerprint was computed from.
type CacheEntry struct {
	Fingerprint string         `json:"fingerprint"`
	Family      string         `json:"family"`
	UserID      string         `json:"user_id"`
	Level       float64        `json:"level"`
	Result      AnalysisResult `json:"result"`
	CreatedAt   time.Time      `json:"created_at"`
	TTL         time.Duration  `json:"ttl"`
}

// ExpiresAt is CreatedAt plus TTL.
func (e CacheEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is no longer servable at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}
