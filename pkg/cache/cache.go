// Package cache stores analysis results keyed by context fingerprint across
// an in-process LRU and a persistent tier, with a tolerant lookup over
// neighbouring battery levels.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// Hit says which lookup tier answered a Get.
type Hit string

const (
	HitMiss    Hit = "miss"
	HitMemory  Hit = "memory"
	HitStore   Hit = "store"
	HitSimilar Hit = "similar"
)

// Exact reports whether the hit came from an exact fingerprint match.
func (h Hit) Exact() bool {
	return h == HitMemory || h == HitStore
}

// Config tunes lookup and invalidation.
type Config struct {
	MemorySize       int
	LevelBucket      float64
	SimilarTolerance float64 // max bucketed level distance for a similar hit; negative disables
	InvalidateDelta  float64 // level change that drops a family
}

// DefaultConfig returns the default tuning. The similar tolerance matches
// the invalidation delta, so any level change that keeps the family alive
// can still be served from it.
func DefaultConfig() Config {
	return Config{
		MemorySize:       512,
		LevelBucket:      DefaultLevelBucket,
		SimilarTolerance: 15,
		InvalidateDelta:  15,
	}
}

// MultiTierCache is safe for concurrent use. Writes are serialized per
// fingerprint; reads never block on writes to other fingerprints.
type MultiTierCache struct {
	cfg    Config
	keyer  Keyer
	mem    *lru.Cache[string, model.CacheEntry]
	tier   Tier
	logger *slog.Logger

	locks   sync.Map // fingerprint -> *sync.Mutex
	nowFunc func() time.Time
}

// New creates a cache. tier may be nil for a memory-only cache.
func New(cfg Config, tier Tier, logger *slog.Logger) (*MultiTierCache, error) {
	def := DefaultConfig()
	if cfg.MemorySize <= 0 {
		cfg.MemorySize = def.MemorySize
	}
	if cfg.LevelBucket <= 0 {
		cfg.LevelBucket = def.LevelBucket
	}
	if cfg.InvalidateDelta <= 0 {
		cfg.InvalidateDelta = def.InvalidateDelta
	}

	mem, err := lru.New[string, model.CacheEntry](cfg.MemorySize)
	if err != nil {
		return nil, fmt.Errorf("create memory tier: %w", err)
	}

	return &MultiTierCache{
		cfg:     cfg,
		keyer:   NewKeyer(cfg.LevelBucket),
		mem:     mem,
		tier:    tier,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// SetClock overrides the time source.
func (c *MultiTierCache) SetClock(now func() time.Time) {
	c.nowFunc = now
}

// Key fingerprints a context.
func (c *MultiTierCache) Key(actx model.AnalysisContext) Key {
	return c.keyer.Key(actx)
}

// Get looks up memory, then the persistent tier, then the family's entries
// within the similar tolerance. Persistent tier errors count as a miss.
func (c *MultiTierCache) Get(ctx context.Context, key Key) (*model.AnalysisResult, Hit) {
	now := c.nowFunc()

	if e, ok := c.mem.Get(key.Fingerprint); ok {
		if !e.Expired(now) {
			return &e.Result, HitMemory
		}
		c.mem.Remove(key.Fingerprint)
	}

	if c.tier != nil {
		e, err := c.tier.Get(ctx, key.Fingerprint)
		if err != nil {
			c.logger.Warn("persistent cache lookup failed", "error", err)
		} else if e != nil && !e.Expired(now) {
			c.mem.Add(e.Fingerprint, *e)
			return &e.Result, HitStore
		}
	}

	if e, ok := c.similar(ctx, key, now); ok {
		return &e.Result, HitSimilar
	}
	return nil, HitMiss
}

func (c *MultiTierCache) similar(ctx context.Context, key Key, now time.Time) (model.CacheEntry, bool) {
	if c.cfg.SimilarTolerance < 0 {
		return model.CacheEntry{}, false
	}

	var candidates []model.CacheEntry
	for _, e := range c.mem.Values() {
		if e.Family == key.Family && !e.Expired(now) {
			candidates = append(candidates, e)
		}
	}
	if c.tier != nil {
		entries, err := c.tier.Family(ctx, key.Family, now)
		if err != nil {
			c.logger.Warn("similar cache lookup failed", "error", err)
		}
		candidates = append(candidates, entries...)
	}

	best, found := model.CacheEntry{}, false
	for _, e := range candidates {
		d := math.Abs(e.Level - key.Level)
		if d > c.cfg.SimilarTolerance {
			continue
		}
		if !found || d < math.Abs(best.Level-key.Level) ||
			(d == math.Abs(best.Level-key.Level) && e.CreatedAt.After(best.CreatedAt)) {
			best, found = e, true
		}
	}
	return best, found
}

// Put stores result under key for ttl. A non-positive ttl is a no-op.
// The entry is written to memory even when the persistent write fails.
func (c *MultiTierCache) Put(ctx context.Context, key Key, userID string, result model.AnalysisResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	unlock := c.lock(key.Fingerprint)
	defer unlock()

	entry := model.CacheEntry{
		Fingerprint: key.Fingerprint,
		Family:      key.Family,
		UserID:      userID,
		Level:       key.Level,
		Result:      result,
		CreatedAt:   c.nowFunc().UTC(),
		TTL:         ttl,
	}
	c.mem.Add(key.Fingerprint, entry)

	if c.tier == nil {
		return nil
	}
	if err := c.tier.Put(ctx, entry); err != nil {
		return fmt.Errorf("persist cache entry: %w", err)
	}
	return nil
}

// Changed reports why newCtx invalidates results computed for oldCtx, or ""
// if it does not.
func (c *MultiTierCache) Changed(oldCtx, newCtx model.AnalysisContext) string {
	switch {
	case math.Abs(newCtx.Battery.CurrentLevel-oldCtx.Battery.CurrentLevel) > c.cfg.InvalidateDelta:
		return "level_delta"
	case oldCtx.Environment.Bucket() != newCtx.Environment.Bucket():
		return "environment"
	case !slices.Equal(model.NormalizeTags(oldCtx.Tags), model.NormalizeTags(newCtx.Tags)):
		return "tags"
	default:
		return ""
	}
}

// InvalidateOnDelta drops the family of oldCtx from every tier when newCtx
// differs materially. It reports whether anything was invalidated.
func (c *MultiTierCache) InvalidateOnDelta(ctx context.Context, oldCtx, newCtx model.AnalysisContext) (bool, error) {
	reason := c.Changed(oldCtx, newCtx)
	if reason == "" {
		return false, nil
	}

	family := c.keyer.Key(oldCtx).Family
	removed := c.dropMemoryFamily(family)

	var stored int64
	if c.tier != nil {
		n, err := c.tier.DeleteFamily(ctx, family)
		if err != nil {
			return true, fmt.Errorf("invalidate persisted family: %w", err)
		}
		stored = n
	}

	c.logger.Debug("cache family invalidated",
		"user_id", oldCtx.UserID,
		"reason", reason,
		"memory_entries", removed,
		"stored_entries", stored,
	)
	return true, nil
}

func (c *MultiTierCache) dropMemoryFamily(family string) int {
	removed := 0
	for _, fp := range c.mem.Keys() {
		if e, ok := c.mem.Peek(fp); ok && e.Family == family {
			c.mem.Remove(fp)
			removed++
		}
	}
	return removed
}

// Purge drops expired entries, or everything when all is true. The count is
// the sum of removals from each tier, so an entry held by both counts twice.
func (c *MultiTierCache) Purge(ctx context.Context, all bool) (int64, error) {
	now := c.nowFunc()
	var before time.Time
	if !all {
		before = now
	}

	var n int64
	for _, fp := range c.mem.Keys() {
		if e, ok := c.mem.Peek(fp); ok && (all || e.Expired(now)) {
			c.mem.Remove(fp)
			n++
		}
	}
	if c.tier == nil {
		return n, nil
	}
	stored, err := c.tier.Purge(ctx, before)
	if err != nil {
		return n, fmt.Errorf("purge persistent cache: %w", err)
	}
	return n + stored, nil
}

// Len is the number of entries in the memory tier.
func (c *MultiTierCache) Len() int {
	return c.mem.Len()
}

func (c *MultiTierCache) lock(fingerprint string) func() {
	mu, _ := c.locks.LoadOrStore(fingerprint, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
