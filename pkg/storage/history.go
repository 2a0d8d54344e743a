package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

func (s *SQLite) GetCacheEntry(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, family, user_id, level, result, created_at, ttl_ns
		 FROM cache_entries WHERE fingerprint = ?`, fingerprint)

	e, err := scanCacheEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cache entry %q: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return e, nil
}

func (s *SQLite) PutCacheEntry(ctx context.Context, entry model.CacheEntry) error {
	payload, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (fingerprint, family, user_id, level, result, created_at, ttl_ns, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   family = excluded.family,
		   user_id = excluded.user_id,
		   level = excluded.level,
		   result = excluded.result,
		   created_at = excluded.created_at,
		   ttl_ns = excluded.ttl_ns,
		   expires_at = excluded.expires_at`,
		entry.Fingerprint, entry.Family, entry.UserID, entry.Level, string(payload),
		entry.CreatedAt.UTC(), int64(entry.TTL), entry.ExpiresAt().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) FamilyCacheEntries(ctx context.Context, family string, now time.Time) ([]model.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, family, user_id, level, result, created_at, ttl_ns
		 FROM cache_entries WHERE family = ? AND expires_at > ? ORDER BY level`,
		family, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query cache family: %w", err)
	}
	defer rows.Close()

	var entries []model.CacheEntry
	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *SQLite) DeleteCacheFamily(ctx context.Context, family string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE family = ?`, family)
	if err != nil {
		return 0, fmt.Errorf("delete cache family: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) PurgeCache(ctx context.Context, before time.Time) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if before.IsZero() {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, before.UnixNano())
	}
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCacheEntry(row rowScanner) (*model.CacheEntry, error) {
	var (
		e       model.CacheEntry
		payload string
		ttl     int64
	)
	if err := row.Scan(&e.Fingerprint, &e.Family, &e.UserID, &e.Level, &payload, &e.CreatedAt, &ttl); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &e.Result); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	e.TTL = time.Duration(ttl)
	return &e, nil
}

func (s *SQLite) SaveSnapshot(ctx context.Context, snap model.BatterySnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO battery_snapshots (id, current_level, morning_charge, drain_rate, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		snap.ID, snap.CurrentLevel, snap.MorningCharge, snap.DrainRate, snap.LastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert battery snapshot: %w", err)
	}
	return nil
}

func (s *SQLite) LatestSnapshot(ctx context.Context) (*model.BatterySnapshot, error) {
	var b model.BatterySnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT id, current_level, morning_charge, drain_rate, last_updated
		 FROM battery_snapshots ORDER BY seq DESC LIMIT 1`,
	).Scan(&b.ID, &b.CurrentLevel, &b.MorningCharge, &b.DrainRate, &b.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest battery snapshot: %w", err)
	}
	return &b, nil
}

func (s *SQLite) ListSnapshots(ctx context.Context, since time.Time, limit int) ([]model.BatterySnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, current_level, morning_charge, drain_rate, last_updated
		 FROM battery_snapshots WHERE last_updated >= ? ORDER BY seq DESC LIMIT ?`,
		since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list battery snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.BatterySnapshot
	for rows.Next() {
		var b model.BatterySnapshot
		if err := rows.Scan(&b.ID, &b.CurrentLevel, &b.MorningCharge, &b.DrainRate, &b.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan battery snapshot: %w", err)
		}
		snaps = append(snaps, b)
	}
	return snaps, rows.Err()
}
