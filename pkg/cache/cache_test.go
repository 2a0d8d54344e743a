package cache_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/energy-advisor/pkg/cache"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/storage"
)

var (
	testNow    = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func actx(level float64, tags ...model.Tag) model.AnalysisContext {
	return model.AnalysisContext{
		UserID:     "u1",
		Battery:    model.NewBatterySnapshot("s", level, 90, -5, testNow),
		Tags:       tags,
		TimeBucket: model.BucketMorning,
	}
}

func hybrid(headline string) model.AnalysisResult {
	return model.AnalysisResult{
		Source:      model.SourceHybrid,
		Static:      model.StaticAnalysis{Headline: "static"},
		Enhanced:    &model.EnhancedAnalysis{Headline: headline, Actions: []string{"a"}, Confidence: 0.7, GeneratedAt: testNow},
		GeneratedAt: testNow,
		ValidUntil:  testNow.Add(8 * time.Hour),
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newSQLiteTier(t *testing.T) (*cache.StorageTier, *storage.SQLite) {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return cache.NewStorageTier(db), db
}

func newCache(t *testing.T, tier cache.Tier) (*cache.MultiTierCache, *clock) {
	t.Helper()
	c, err := cache.New(cache.DefaultConfig(), tier, testLogger)
	require.NoError(t, err)
	clk := &clock{t: testNow}
	c.SetClock(clk.now)
	return c, clk
}

func TestKeyer_Buckets(t *testing.T) {
	k := cache.NewKeyer(5)

	a := k.Key(actx(62, model.TagSleep, model.TagFocus))
	b := k.Key(actx(61.2, model.TagFocus, model.TagSleep))
	assert.Equal(t, a.Fingerprint, b.Fingerprint, "tag order and sub-bucket level must not matter")
	assert.Equal(t, 60.0, a.Level)

	c := k.Key(actx(68, model.TagSleep, model.TagFocus))
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
	assert.Equal(t, a.Family, c.Family)

	d := k.Key(actx(62, model.TagSleep))
	assert.NotEqual(t, a.Family, d.Family)

	other := actx(62, model.TagSleep, model.TagFocus)
	other.UserID = "u2"
	assert.NotEqual(t, a.Family, k.Key(other).Family)
}

func TestKeyer_EnvironmentBucket(t *testing.T) {
	k := cache.NewKeyer(5)
	warm, hot := 21.0, 33.0

	a, b := actx(50), actx(50)
	a.Environment.Temperature = &warm
	b.Environment.Temperature = &hot
	assert.NotEqual(t, k.Key(a).Family, k.Key(b).Family)

	slightlyWarmer := 23.0
	b.Environment.Temperature = &slightlyWarmer
	assert.Equal(t, k.Key(a).Fingerprint, k.Key(b).Fingerprint)
}

func TestMultiTierCache_MemoryAndStore(t *testing.T) {
	ctx := context.Background()
	tier, _ := newSQLiteTier(t)
	c, _ := newCache(t, tier)

	key := c.Key(actx(62))
	_, hit := c.Get(ctx, key)
	assert.Equal(t, cache.HitMiss, hit)

	require.NoError(t, c.Put(ctx, key, "u1", hybrid("h1"), time.Hour))
	got, hit := c.Get(ctx, key)
	require.NotNil(t, got)
	assert.Equal(t, cache.HitMemory, hit)
	assert.True(t, hit.Exact())
	assert.Equal(t, "h1", got.Enhanced.Headline)

	// a fresh process sees the persisted entry
	c2, _ := newCache(t, tier)
	got, hit = c2.Get(ctx, key)
	require.NotNil(t, got)
	assert.Equal(t, cache.HitStore, hit)
	assert.Equal(t, model.SourceHybrid, got.Source)
	assert.Equal(t, 1, c2.Len())
}

func TestMultiTierCache_Expiry(t *testing.T) {
	ctx := context.Background()
	tier, _ := newSQLiteTier(t)
	c, clk := newCache(t, tier)

	key := c.Key(actx(62))
	require.NoError(t, c.Put(ctx, key, "u1", hybrid("h1"), time.Hour))

	clk.advance(time.Hour)
	got, hit := c.Get(ctx, key)
	assert.Nil(t, got)
	assert.Equal(t, cache.HitMiss, hit)
}

func TestMultiTierCache_NonPositiveTTL(t *testing.T) {
	c, _ := newCache(t, nil)
	key := c.Key(actx(62))
	require.NoError(t, c.Put(context.Background(), key, "u1", hybrid("h1"), 0))
	assert.Equal(t, 0, c.Len())
}

func TestMultiTierCache_Similar(t *testing.T) {
	ctx := context.Background()
	tier, _ := newSQLiteTier(t)
	c, _ := newCache(t, tier)

	require.NoError(t, c.Put(ctx, c.Key(actx(64)), "u1", hybrid("near"), time.Hour))

	got, hit := c.Get(ctx, c.Key(actx(68)))
	require.NotNil(t, got)
	assert.Equal(t, cache.HitSimilar, hit)
	assert.False(t, hit.Exact())
	assert.Equal(t, "near", got.Enhanced.Headline)

	// ten points away is still within the invalidation delta
	got, hit = c.Get(ctx, c.Key(actx(74)))
	require.NotNil(t, got)
	assert.Equal(t, cache.HitSimilar, hit)

	// too far
	_, hit = c.Get(ctx, c.Key(actx(88)))
	assert.Equal(t, cache.HitMiss, hit)

	// different tag set is a different family
	_, hit = c.Get(ctx, c.Key(actx(64, model.TagSleep)))
	assert.Equal(t, cache.HitMiss, hit)
}

func TestMultiTierCache_SimilarPrefersNearest(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, nil)

	require.NoError(t, c.Put(ctx, c.Key(actx(50)), "u1", hybrid("far"), time.Hour))
	require.NoError(t, c.Put(ctx, c.Key(actx(61)), "u1", hybrid("near"), time.Hour))

	got, hit := c.Get(ctx, c.Key(actx(66)))
	require.NotNil(t, got)
	assert.Equal(t, cache.HitSimilar, hit)
	assert.Equal(t, "near", got.Enhanced.Headline)
}

func TestMultiTierCache_SimilarDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := cache.DefaultConfig()
	cfg.SimilarTolerance = -1
	c, err := cache.New(cfg, nil, testLogger)
	require.NoError(t, err)
	c.SetClock(func() time.Time { return testNow })

	require.NoError(t, c.Put(ctx, c.Key(actx(62)), "u1", hybrid("h"), time.Hour))
	_, hit := c.Get(ctx, c.Key(actx(67)))
	assert.Equal(t, cache.HitMiss, hit)
}

func TestMultiTierCache_SimilarFromStoreOnly(t *testing.T) {
	ctx := context.Background()
	tier, _ := newSQLiteTier(t)
	writer, _ := newCache(t, tier)
	require.NoError(t, writer.Put(ctx, writer.Key(actx(40)), "u1", hybrid("stored"), time.Hour))

	reader, _ := newCache(t, tier)
	got, hit := reader.Get(ctx, reader.Key(actx(44)))
	require.NotNil(t, got)
	assert.Equal(t, cache.HitSimilar, hit)
	assert.Equal(t, "stored", got.Enhanced.Headline)
}

func TestMultiTierCache_InvalidateOnDelta(t *testing.T) {
	ctx := context.Background()
	tier, db := newSQLiteTier(t)
	c, _ := newCache(t, tier)

	old := actx(80, model.TagSleep)
	require.NoError(t, c.Put(ctx, c.Key(old), "u1", hybrid("old"), time.Hour))
	require.NoError(t, c.Put(ctx, c.Key(actx(75, model.TagSleep)), "u1", hybrid("old2"), time.Hour))

	// small change keeps the family
	ok, err := c.InvalidateOnDelta(ctx, old, actx(72, model.TagSleep))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.InvalidateOnDelta(ctx, old, actx(60, model.TagSleep))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, c.Len())

	_, hit := c.Get(ctx, c.Key(old))
	assert.Equal(t, cache.HitMiss, hit)

	entries, err := db.FamilyCacheEntries(ctx, c.Key(old).Family, testNow)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMultiTierCache_Changed(t *testing.T) {
	c, _ := newCache(t, nil)
	base := actx(50, model.TagSleep)

	assert.Equal(t, "", c.Changed(base, actx(60, model.TagSleep)))
	assert.Equal(t, "level_delta", c.Changed(base, actx(66, model.TagSleep)))
	assert.Equal(t, "tags", c.Changed(base, actx(50, model.TagSleep, model.TagFocus)))

	aqi := 150.0
	poor := actx(50, model.TagSleep)
	poor.Environment.AirQuality = &aqi
	assert.Equal(t, "environment", c.Changed(base, poor))
}

func TestMultiTierCache_Purge(t *testing.T) {
	ctx := context.Background()
	tier, _ := newSQLiteTier(t)
	c, clk := newCache(t, tier)

	require.NoError(t, c.Put(ctx, c.Key(actx(20)), "u1", hybrid("short"), time.Minute))
	require.NoError(t, c.Put(ctx, c.Key(actx(50)), "u1", hybrid("long"), time.Hour))

	clk.advance(2 * time.Minute)
	n, err := c.Purge(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "one expired entry in each tier")
	assert.Equal(t, 1, c.Len())

	n, err = c.Purge(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, c.Len())
}

func TestMultiTierCache_PurgeCountsMemoryTier(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, nil)

	for _, level := range []float64{20, 50, 80} {
		require.NoError(t, c.Put(ctx, c.Key(actx(level)), "u1", hybrid("h"), time.Hour))
	}

	n, err := c.Purge(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 0, c.Len())
}

func TestMultiTierCache_PurgeCountsEntriesOnlyInMemory(t *testing.T) {
	ctx := context.Background()
	tier, _ := newSQLiteTier(t)
	writer, _ := newCache(t, tier)
	require.NoError(t, writer.Put(ctx, writer.Key(actx(30)), "u1", hybrid("stored"), time.Hour))

	// a second cache over the same store holds nothing in memory
	reader, _ := newCache(t, tier)
	n, err := reader.Purge(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = writer.Purge(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "memory copy only; the stored row is gone")
}

func TestMultiTierCache_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	tier, _ := newSQLiteTier(t)
	c, _ := newCache(t, tier)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(level float64) {
			defer wg.Done()
			key := c.Key(actx(level))
			assert.NoError(t, c.Put(ctx, key, "u1", hybrid("x"), time.Hour))
			_, _ = c.Get(ctx, key)
		}(float64(i * 5))
	}
	wg.Wait()
	assert.Equal(t, 20, c.Len())
}
