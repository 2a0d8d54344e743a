package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// RedisTier keeps entries in Redis. Each entry is a JSON string with a
// native expiry; each family is a set of fingerprints.
type RedisTier struct {
	client *redis.Client
	prefix string
}

var _ Tier = (*RedisTier)(nil)

// NewRedisTier connects to url and verifies the connection.
func NewRedisTier(ctx context.Context, url, prefix string) (*RedisTier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = "advisor:cache:"
	}
	return &RedisTier{client: client, prefix: prefix}, nil
}

// Close closes the connection pool.
func (t *RedisTier) Close() error {
	return t.client.Close()
}

func (t *RedisTier) entryKey(fp string) string { return t.prefix + "entry:" + fp }
func (t *RedisTier) familyKey(f string) string { return t.prefix + "family:" + f }

func (t *RedisTier) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	raw, err := t.client.Get(ctx, t.entryKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var e model.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode redis entry: %w", err)
	}
	return &e, nil
}

func (t *RedisTier) Put(ctx context.Context, entry model.CacheEntry) error {
	ttl := time.Until(entry.ExpiresAt())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode redis entry: %w", err)
	}

	pipe := t.client.TxPipeline()
	pipe.Set(ctx, t.entryKey(entry.Fingerprint), raw, ttl)
	pipe.SAdd(ctx, t.familyKey(entry.Family), entry.Fingerprint)
	pipe.Expire(ctx, t.familyKey(entry.Family), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (t *RedisTier) Family(ctx context.Context, family string, now time.Time) ([]model.CacheEntry, error) {
	members, err := t.client.SMembers(ctx, t.familyKey(family)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis family members: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, fp := range members {
		keys[i] = t.entryKey(fp)
	}
	vals, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis family entries: %w", err)
	}

	var (
		entries []model.CacheEntry
		stale   []any
	)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var e model.CacheEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil || e.Expired(now) {
			continue
		}
		entries = append(entries, e)
	}
	if len(stale) > 0 {
		t.client.SRem(ctx, t.familyKey(family), stale...)
	}
	return entries, nil
}

func (t *RedisTier) DeleteFamily(ctx context.Context, family string) (int64, error) {
	members, err := t.client.SMembers(ctx, t.familyKey(family)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis family members: %w", err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, fp := range members {
		keys = append(keys, t.entryKey(fp))
	}
	n, err := t.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete entries: %w", err)
	}
	if err := t.client.Del(ctx, t.familyKey(family)).Err(); err != nil {
		return n, fmt.Errorf("redis delete family: %w", err)
	}
	return n, nil
}

// Purge removes every entry and family set under the prefix when before is
// zero, and reports the number of entries removed. Redis expires entries on
// its own, so a non-zero before is a no-op.
func (t *RedisTier) Purge(ctx context.Context, before time.Time) (int64, error) {
	if !before.IsZero() {
		return 0, nil
	}

	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := t.client.Scan(ctx, cursor, t.prefix+"*", 500).Result()
		if err != nil {
			return total, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := t.client.Del(ctx, keys...).Err(); err != nil {
				return total, fmt.Errorf("redis purge: %w", err)
			}
			for _, k := range keys {
				if strings.HasPrefix(k, t.prefix+"entry:") {
					total++
				}
			}
		}
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}
