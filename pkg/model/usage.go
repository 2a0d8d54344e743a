package model

import "time"

// UsageRecord is one billed remote analysis call.
type UsageRecord struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Provider     string    `json:"provider" db:"provider"`
	Model        string    `json:"model" db:"model"`
	InputTokens  int64     `json:"input_tokens" db:"input_tokens"`
	OutputTokens int64     `json:"output_tokens" db:"output_tokens"`
	CostUnits    float64   `json:"cost_units" db:"cost_units"`
	Fingerprint  string    `json:"fingerprint,omitempty" db:"fingerprint"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// BudgetLedger is a user's remote-analysis spend for one day.
type BudgetLedger struct {
	UserID        string    `json:"user_id" db:"user_id"`
	Day           string    `json:"day" db:"day"` // YYYY-MM-DD in the gate's location
	SpentToday    float64   `json:"spent_today" db:"spent_today"`
	DailyCapUnits float64   `json:"daily_cap_units" db:"daily_cap_units"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Remaining is the unspent part of the cap, never negative.
func (l BudgetLedger) Remaining() float64 {
	if r := l.DailyCapUnits - l.SpentToday; r > 0 {
		return r
	}
	return 0
}

// ReportFilter controls which usage records are included in reports.
type ReportFilter struct {
	UserID    string    `json:"user_id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// UsageSummary holds aggregated usage statistics.
type UsageSummary struct {
	TotalCostUnits    float64            `json:"total_cost_units"`
	TotalInputTokens  int64              `json:"total_input_tokens"`
	TotalOutputTokens int64              `json:"total_output_tokens"`
	RecordCount       int64              `json:"record_count"`
	ByUser            map[string]float64 `json:"by_user,omitempty"`
	ByModel           map[string]float64 `json:"by_model,omitempty"`
}
