// Package budget enforces a per-user daily cap on remote analysis spend.
//
// Ledgers reset lazily: the first access after a day boundary zeroes the
// spend. An unreset ledger can only make the gate stricter, so no background
// sweep is needed.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/alerts"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/storage"
)

// LedgerStore persists ledgers.
type LedgerStore interface {
	GetLedger(ctx context.Context, userID string) (*model.BudgetLedger, error)
	SaveLedger(ctx context.Context, ledger *model.BudgetLedger) error
}

// Config configures a Gate.
type Config struct {
	DailyCapUnits float64
	Location      *time.Location // day boundary; UTC when nil
	WarnFraction  float64        // alert when spend crosses this share of the cap
}

// Decision is the outcome of an admission check. A rejection is a normal
// decision, not an error.
type Decision struct {
	Allowed   bool               `json:"allowed"`
	Reason    string             `json:"reason,omitempty"`
	Estimated float64            `json:"estimated"`
	Ledger    model.BudgetLedger `json:"ledger"`
}

const (
	ReasonCapReached  = "daily cap reached"
	ReasonWouldExceed = "estimate exceeds remaining budget"
	ReasonStoreError  = "ledger unavailable"
)

// Gate admits or rejects remote calls against each user's daily cap.
// Updates to one user's ledger are serialized; different users proceed
// independently.
type Gate struct {
	store   LedgerStore
	cfg     Config
	alerts  *alerts.Dispatcher
	logger  *slog.Logger
	nowFunc func() time.Time

	locks   sync.Map // userID -> *sync.Mutex
	pending sync.Map // userID -> *float64, guarded by the user's lock
}

// NewGate creates a gate. dispatcher may be nil.
func NewGate(store LedgerStore, cfg Config, dispatcher *alerts.Dispatcher, logger *slog.Logger) *Gate {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WarnFraction <= 0 || cfg.WarnFraction >= 1 {
		cfg.WarnFraction = 0.8
	}
	return &Gate{
		store:   store,
		cfg:     cfg,
		alerts:  dispatcher,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetClock overrides the time source.
func (g *Gate) SetClock(now func() time.Time) {
	g.nowFunc = now
}

func (g *Gate) lock(userID string) func() {
	mu, _ := g.locks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (g *Gate) pendingFor(userID string) *float64 {
	p, _ := g.pending.LoadOrStore(userID, new(float64))
	return p.(*float64)
}

// load returns the user's ledger for today, resetting it if it belongs to
// an earlier day. Caller holds the user's lock.
func (g *Gate) load(ctx context.Context, userID string) (model.BudgetLedger, bool, error) {
	now := g.nowFunc()
	today := model.DayKey(now, g.cfg.Location)

	l, err := g.store.GetLedger(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return model.BudgetLedger{UserID: userID, Day: today, DailyCapUnits: g.cfg.DailyCapUnits, UpdatedAt: now}, true, nil
	case err != nil:
		return model.BudgetLedger{}, false, fmt.Errorf("load ledger: %w", err)
	}

	if l.DailyCapUnits <= 0 {
		l.DailyCapUnits = g.cfg.DailyCapUnits
	}
	if l.Day != today {
		g.logger.Info("budget reset for new day", "user", userID, "previous_day", l.Day, "spent", l.SpentToday)
		l.Day = today
		l.SpentToday = 0
		l.UpdatedAt = now
		return *l, true, nil
	}
	return *l, false, nil
}

// ResetIfNewDay zeroes the user's spend if the ledger belongs to an earlier
// day and returns the current ledger.
func (g *Gate) ResetIfNewDay(ctx context.Context, userID string) (model.BudgetLedger, error) {
	defer g.lock(userID)()

	l, changed, err := g.load(ctx, userID)
	if err != nil {
		return l, err
	}
	if changed {
		if err := g.store.SaveLedger(ctx, &l); err != nil {
			return l, fmt.Errorf("save ledger: %w", err)
		}
	}
	return l, nil
}

// Ledger returns the user's ledger for today.
func (g *Gate) Ledger(ctx context.Context, userID string) (model.BudgetLedger, error) {
	return g.ResetIfNewDay(ctx, userID)
}

// Check evaluates whether estimated more units fit under the cap, counting
// spend reserved by in-flight calls.
func (g *Gate) Check(ctx context.Context, userID string, estimated float64) (Decision, error) {
	defer g.lock(userID)()
	return g.check(ctx, userID, estimated)
}

func (g *Gate) check(ctx context.Context, userID string, estimated float64) (Decision, error) {
	l, changed, err := g.load(ctx, userID)
	if err != nil {
		return Decision{Reason: ReasonStoreError, Estimated: estimated}, err
	}
	if changed {
		if err := g.store.SaveLedger(ctx, &l); err != nil {
			return Decision{Reason: ReasonStoreError, Estimated: estimated, Ledger: l}, fmt.Errorf("save ledger: %w", err)
		}
	}

	committed := l.SpentToday + *g.pendingFor(userID)
	d := Decision{Estimated: estimated, Ledger: l}
	switch {
	case committed >= l.DailyCapUnits:
		d.Reason = ReasonCapReached
	case committed+max(estimated, 0) > l.DailyCapUnits:
		d.Reason = ReasonWouldExceed
	default:
		d.Allowed = true
	}
	return d, nil
}

// CanAfford reports whether the user may spend estimated more units today.
// A ledger that cannot be read rejects.
func (g *Gate) CanAfford(ctx context.Context, userID string, estimated float64) bool {
	d, err := g.Check(ctx, userID, estimated)
	if err != nil {
		g.logger.Error("budget check failed", "user", userID, "error", err)
		return false
	}
	return d.Allowed
}

// Record adds actual spend to the user's ledger.
func (g *Gate) Record(ctx context.Context, userID string, actual float64) (model.BudgetLedger, error) {
	defer g.lock(userID)()
	return g.record(ctx, userID, actual)
}

func (g *Gate) record(ctx context.Context, userID string, actual float64) (model.BudgetLedger, error) {
	l, _, err := g.load(ctx, userID)
	if err != nil {
		return l, err
	}

	before := l.SpentToday
	l.SpentToday += max(actual, 0)
	l.UpdatedAt = g.nowFunc()
	if err := g.store.SaveLedger(ctx, &l); err != nil {
		return l, fmt.Errorf("save ledger: %w", err)
	}

	g.checkThresholds(ctx, l, before)
	return l, nil
}

// SetCap overrides the user's daily cap. A cap of zero restores the default.
func (g *Gate) SetCap(ctx context.Context, userID string, capUnits float64) (model.BudgetLedger, error) {
	if capUnits < 0 {
		return model.BudgetLedger{}, fmt.Errorf("daily cap must not be negative")
	}
	defer g.lock(userID)()

	l, _, err := g.load(ctx, userID)
	if err != nil {
		return l, err
	}
	l.DailyCapUnits = capUnits
	l.UpdatedAt = g.nowFunc()
	if err := g.store.SaveLedger(ctx, &l); err != nil {
		return l, fmt.Errorf("save ledger: %w", err)
	}
	if capUnits == 0 {
		l.DailyCapUnits = g.cfg.DailyCapUnits
	}
	return l, nil
}

// checkThresholds raises an alert when this spend crossed the warning share
// or the cap itself.
func (g *Gate) checkThresholds(ctx context.Context, l model.BudgetLedger, before float64) {
	if l.DailyCapUnits <= 0 {
		return
	}
	warnAt := l.DailyCapUnits * g.cfg.WarnFraction

	var (
		kind  alerts.AlertKind
		level alerts.AlertLevel
	)
	switch {
	case before < l.DailyCapUnits && l.SpentToday >= l.DailyCapUnits:
		kind, level = alerts.KindBudgetExhausted, alerts.AlertWarning
	case before < warnAt && l.SpentToday >= warnAt:
		kind, level = alerts.KindBudgetWarning, alerts.AlertInfo
	default:
		return
	}

	pct := l.SpentToday / l.DailyCapUnits * 100
	g.logger.Info("budget threshold crossed", "user", l.UserID, "kind", kind, "pct", pct)
	g.alerts.NotifyAsync(ctx, alerts.Alert{
		Kind:    kind,
		Level:   level,
		Subject: l.UserID,
		Message: fmt.Sprintf("Analysis budget for %s at %.0f%% (%.4f / %.4f units)", l.UserID, pct, l.SpentToday, l.DailyCapUnits),
		Fields: map[string]string{
			"day":   l.Day,
			"spent": fmt.Sprintf("%.4f", l.SpentToday),
			"cap":   fmt.Sprintf("%.4f", l.DailyCapUnits),
		},
		Timestamp: l.UpdatedAt,
	})
}
