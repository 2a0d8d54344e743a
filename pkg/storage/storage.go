package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence layer for usage, budget ledgers, cached
// analyses and battery history.
type Storage interface {
	// RecordUsage persists a single usage record.
	RecordUsage(ctx context.Context, record *model.UsageRecord) error

	// QueryUsage retrieves usage records matching the given filter, newest first.
	QueryUsage(ctx context.Context, filter model.ReportFilter) ([]model.UsageRecord, error)

	// AggregateUsage totals cost and tokens for the filter.
	AggregateUsage(ctx context.Context, filter model.ReportFilter) (*model.UsageSummary, error)

	// GetLedger returns a user's ledger or ErrNotFound.
	GetLedger(ctx context.Context, userID string) (*model.BudgetLedger, error)

	// SaveLedger creates or replaces a user's ledger.
	SaveLedger(ctx context.Context, ledger *model.BudgetLedger) error

	// ListLedgers returns all ledgers ordered by user.
	ListLedgers(ctx context.Context) ([]model.BudgetLedger, error)

	// GetCacheEntry returns the entry for a fingerprint or ErrNotFound.
	GetCacheEntry(ctx context.Context, fingerprint string) (*model.CacheEntry, error)

	// PutCacheEntry creates or replaces a cache entry.
	PutCacheEntry(ctx context.Context, entry model.CacheEntry) error

	// FamilyCacheEntries returns unexpired entries sharing a family key.
	FamilyCacheEntries(ctx context.Context, family string, now time.Time) ([]model.CacheEntry, error)

	// DeleteCacheFamily removes every entry of a family.
	DeleteCacheFamily(ctx context.Context, family string) (int64, error)

	// PurgeCache removes entries expired at before, or all entries when
	// before is zero.
	PurgeCache(ctx context.Context, before time.Time) (int64, error)

	// SaveSnapshot appends a battery snapshot to the history.
	SaveSnapshot(ctx context.Context, snap model.BatterySnapshot) error

	// LatestSnapshot returns the most recently saved snapshot, or nil.
	LatestSnapshot(ctx context.Context) (*model.BatterySnapshot, error)

	// ListSnapshots returns up to limit snapshots updated at or after since,
	// newest first.
	ListSnapshots(ctx context.Context, since time.Time, limit int) ([]model.BatterySnapshot, error)

	// Close releases resources.
	Close() error
}
