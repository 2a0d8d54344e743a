package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// UsageStore persists and aggregates usage records.
type UsageStore interface {
	RecordUsage(ctx context.Context, record *model.UsageRecord) error
	QueryUsage(ctx context.Context, filter model.ReportFilter) ([]model.UsageRecord, error)
	AggregateUsage(ctx context.Context, filter model.ReportFilter) (*model.UsageSummary, error)
}

// UsageTracker records each billed remote call.
type UsageTracker struct {
	store  UsageStore
	logger *slog.Logger
}

// NewUsageTracker creates a usage tracker.
func NewUsageTracker(store UsageStore, logger *slog.Logger) *UsageTracker {
	return &UsageTracker{store: store, logger: logger}
}

// Track stores a usage record, filling in its ID and timestamp.
func (t *UsageTracker) Track(ctx context.Context, record *model.UsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	if err := t.store.RecordUsage(ctx, record); err != nil {
		return fmt.Errorf("store usage: %w", err)
	}

	t.logger.Info("usage recorded",
		"user", record.UserID,
		"provider", record.Provider,
		"model", record.Model,
		"input_tokens", record.InputTokens,
		"output_tokens", record.OutputTokens,
		"cost_units", record.CostUnits,
	)
	return nil
}

// Report generates a usage summary for the given filter.
func (t *UsageTracker) Report(ctx context.Context, filter model.ReportFilter) (*model.UsageSummary, error) {
	return t.store.AggregateUsage(ctx, filter)
}

// Query returns individual usage records for the given filter.
func (t *UsageTracker) Query(ctx context.Context, filter model.ReportFilter) ([]model.UsageRecord, error) {
	return t.store.QueryUsage(ctx, filter)
}
