package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: usage and budget ledgers
	`CREATE TABLE IF NOT EXISTS usage_records (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost_units    REAL NOT NULL DEFAULT 0.0,
		fingerprint   TEXT NOT NULL DEFAULT '',
		timestamp     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_model ON usage_records(model);

	CREATE TABLE IF NOT EXISTS budget_ledgers (
		user_id         TEXT PRIMARY KEY,
		day             TEXT NOT NULL,
		spent_today     REAL NOT NULL DEFAULT 0.0 CHECK(spent_today >= 0),
		daily_cap_units REAL NOT NULL DEFAULT 0.0,
		updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,

	// Migration 2: analysis cache and battery history
	`CREATE TABLE IF NOT EXISTS cache_entries (
		fingerprint TEXT PRIMARY KEY,
		family      TEXT NOT NULL,
		user_id     TEXT NOT NULL DEFAULT '',
		level       REAL NOT NULL,
		result      TEXT NOT NULL,
		created_at  DATETIME NOT NULL,
		ttl_ns      INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_family ON cache_entries(family);
	CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);

	CREATE TABLE IF NOT EXISTS battery_snapshots (
		seq            INTEGER PRIMARY KEY AUTOINCREMENT,
		id             TEXT NOT NULL UNIQUE,
		current_level  REAL NOT NULL CHECK(current_level BETWEEN 0 AND 100),
		morning_charge REAL NOT NULL,
		drain_rate     REAL NOT NULL,
		last_updated   DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_updated ON battery_snapshots(last_updated);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
