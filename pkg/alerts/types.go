// Package alerts delivers system notifications: a battery entering the
// critical band, a user exhausting their daily budget, and the remote
// analysis circuit opening or recovering.
package alerts

import (
	"context"
	"time"
)

// AlertLevel indicates the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// AlertKind names the condition that raised the alert.
type AlertKind string

const (
	KindBatteryCritical AlertKind = "battery_critical"
	KindBudgetWarning   AlertKind = "budget_warning"
	KindBudgetExhausted AlertKind = "budget_exhausted"
	KindCircuitOpened   AlertKind = "circuit_opened"
	KindCircuitClosed   AlertKind = "circuit_closed"
)

// Alert is a single notification.
// Subject is the user or endpoint the alert concerns.
type Alert struct {
	Kind      AlertKind         `json:"kind"`
	Level     AlertLevel        `json:"level"`
	Subject   string            `json:"subject"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
