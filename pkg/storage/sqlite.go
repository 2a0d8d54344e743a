package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (s *SQLite) RecordUsage(ctx context.Context, record *model.UsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.Timestamp = record.Timestamp.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, user_id, provider, model, input_tokens, output_tokens, cost_units, fingerprint, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.Provider, record.Model,
		record.InputTokens, record.OutputTokens, record.CostUnits,
		record.Fingerprint, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

func (s *SQLite) QueryUsage(ctx context.Context, filter model.ReportFilter) ([]model.UsageRecord, error) {
	query := "SELECT id, user_id, provider, model, input_tokens, output_tokens, cost_units, fingerprint, timestamp FROM usage_records"
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var r model.UsageRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Provider, &r.Model, &r.InputTokens, &r.OutputTokens,
			&r.CostUnits, &r.Fingerprint, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) AggregateUsage(ctx context.Context, filter model.ReportFilter) (*model.UsageSummary, error) {
	query := `SELECT
		COALESCE(SUM(cost_units), 0),
		COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0),
		COUNT(*)
	FROM usage_records`
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}

	summary := &model.UsageSummary{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.TotalCostUnits,
		&summary.TotalInputTokens,
		&summary.TotalOutputTokens,
		&summary.RecordCount,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}

	summary.ByUser, err = s.aggregateByField(ctx, "user_id", where, args)
	if err != nil {
		return nil, err
	}
	summary.ByModel, err = s.aggregateByField(ctx, "model", where, args)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// aggregateByField groups cost by a column. field is always a literal
// chosen by this package, never user input.
func (s *SQLite) aggregateByField(ctx context.Context, field, where string, args []any) (map[string]float64, error) {
	query := fmt.Sprintf("SELECT %s, COALESCE(SUM(cost_units), 0) FROM usage_records", field)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" GROUP BY %s", field)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by %s: %w", field, err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scan %s aggregate: %w", field, err)
		}
		result[name] = total
	}
	return result, rows.Err()
}

func (s *SQLite) GetLedger(ctx context.Context, userID string) (*model.BudgetLedger, error) {
	var l model.BudgetLedger
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, day, spent_today, daily_cap_units, updated_at FROM budget_ledgers WHERE user_id = ?`, userID,
	).Scan(&l.UserID, &l.Day, &l.SpentToday, &l.DailyCapUnits, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ledger for %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return &l, nil
}

func (s *SQLite) SaveLedger(ctx context.Context, ledger *model.BudgetLedger) error {
	if ledger.UpdatedAt.IsZero() {
		ledger.UpdatedAt = time.Now()
	}
	ledger.UpdatedAt = ledger.UpdatedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_ledgers (user_id, day, spent_today, daily_cap_units, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   day = excluded.day,
		   spent_today = excluded.spent_today,
		   daily_cap_units = excluded.daily_cap_units,
		   updated_at = excluded.updated_at`,
		ledger.UserID, ledger.Day, ledger.SpentToday, ledger.DailyCapUnits, ledger.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (s *SQLite) ListLedgers(ctx context.Context) ([]model.BudgetLedger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, day, spent_today, daily_cap_units, updated_at FROM budget_ledgers ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []model.BudgetLedger
	for rows.Next() {
		var l model.BudgetLedger
		if err := rows.Scan(&l.UserID, &l.Day, &l.SpentToday, &l.DailyCapUnits, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a ReportFilter.
func buildWhereClause(filter model.ReportFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, filter.Model)
	}
	if !filter.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime.UTC())
	}
	if !filter.EndTime.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.EndTime.UTC())
	}

	return strings.Join(conditions, " AND "), args
}
