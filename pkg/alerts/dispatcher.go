package alerts

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher fans an alert out to every notifier. Delivery failures are
// logged, never returned. A nil Dispatcher drops alerts.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher over the given notifiers.
func NewDispatcher(notifiers []Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, logger: logger, timeout: 10 * time.Second}
}

// Len returns the number of configured notifiers.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.notifiers)
}

// Notify delivers alert synchronously to all notifiers.
func (d *Dispatcher) Notify(ctx context.Context, alert Alert) {
	if d == nil || len(d.notifiers) == 0 {
		return
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	d.logger.Warn("alert raised",
		"kind", alert.Kind,
		"level", alert.Level,
		"subject", alert.Subject,
		"message", alert.Message,
	)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	for _, n := range d.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			d.logger.Error("send alert failed",
				"notifier", n.Name(),
				"kind", alert.Kind,
				"subject", alert.Subject,
				"error", err,
			)
		}
	}
}

// NotifyAsync delivers alert in the background, detached from ctx's
// cancellation so a finished request does not abort delivery.
func (d *Dispatcher) NotifyAsync(ctx context.Context, alert Alert) {
	if d == nil || len(d.notifiers) == 0 {
		return
	}
	go d.Notify(context.WithoutCancel(ctx), alert)
}
