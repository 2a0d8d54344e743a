package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/storage"
)

// Tier is a persistent cache backend. Get returns nil, nil on a miss.
type Tier interface {
	Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	Put(ctx context.Context, entry model.CacheEntry) error
	Family(ctx context.Context, family string, now time.Time) ([]model.CacheEntry, error)
	DeleteFamily(ctx context.Context, family string) (int64, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// EntryStore is the subset of storage.Storage used by StorageTier.
type EntryStore interface {
	GetCacheEntry(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry model.CacheEntry) error
	FamilyCacheEntries(ctx context.Context, family string, now time.Time) ([]model.CacheEntry, error)
	DeleteCacheFamily(ctx context.Context, family string) (int64, error)
	PurgeCache(ctx context.Context, before time.Time) (int64, error)
}

// StorageTier keeps entries in the SQLite store.
type StorageTier struct {
	store EntryStore
}

var _ Tier = (*StorageTier)(nil)

// NewStorageTier wraps a store.
func NewStorageTier(store EntryStore) *StorageTier {
	return &StorageTier{store: store}
}

func (t *StorageTier) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	e, err := t.store.GetCacheEntry(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get persisted entry: %w", err)
	}
	return e, nil
}

func (t *StorageTier) Put(ctx context.Context, entry model.CacheEntry) error {
	return t.store.PutCacheEntry(ctx, entry)
}

func (t *StorageTier) Family(ctx context.Context, family string, now time.Time) ([]model.CacheEntry, error) {
	return t.store.FamilyCacheEntries(ctx, family, now)
}

func (t *StorageTier) DeleteFamily(ctx context.Context, family string) (int64, error) {
	return t.store.DeleteCacheFamily(ctx, family)
}

func (t *StorageTier) Purge(ctx context.Context, before time.Time) (int64, error) {
	return t.store.PurgeCache(ctx, before)
}
