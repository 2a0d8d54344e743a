package energy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/signals"
)

// SnapshotStore persists superseded snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.BatterySnapshot) error
	LatestSnapshot(ctx context.Context) (*model.BatterySnapshot, error)
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Interval time.Duration
	Mode     Mode
	Location signals.Location
	TimeZone *time.Location // scheduler zone; day rollover follows the model's Config
}

// Monitor refreshes the model from the signal providers on a fixed schedule.
type Monitor struct {
	model  *Model
	health signals.HealthSnapshotProvider
	env    signals.EnvironmentSnapshotProvider
	store  SnapshotStore
	cfg    MonitorConfig
	logger *slog.Logger

	refreshMu sync.Mutex
	scheduler gocron.Scheduler
	nowFunc   func() time.Time
}

// NewMonitor wires a model to its providers. store may be nil.
func NewMonitor(m *Model, health signals.HealthSnapshotProvider, env signals.EnvironmentSnapshotProvider, store SnapshotStore, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeStandard
	}
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}
	return &Monitor{
		model:   m,
		health:  health,
		env:     env,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetClock overrides the time source.
func (mon *Monitor) SetClock(now func() time.Time) {
	mon.nowFunc = now
}

// Model returns the underlying energy model.
func (mon *Monitor) Model() *Model {
	return mon.model
}

// Restore loads the most recent persisted snapshot into the model.
func (mon *Monitor) Restore(ctx context.Context) error {
	if mon.store == nil {
		return nil
	}
	snap, err := mon.store.LatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	if snap != nil {
		mon.model.Restore(*snap)
		mon.logger.Info("battery restored", "level", snap.CurrentLevel, "last_updated", snap.LastUpdated)
	}
	return nil
}

// Refresh reads the providers and supersedes the snapshot: a morning charge
// on the first refresh of a day, then a drain recomputation. Provider errors
// are logged and treated as missing data.
func (mon *Monitor) Refresh(ctx context.Context) (model.BatterySnapshot, error) {
	mon.refreshMu.Lock()
	defer mon.refreshMu.Unlock()

	now := mon.nowFunc()

	health, err := mon.health.Latest(ctx)
	if err != nil {
		mon.logger.Warn("health snapshot unavailable", "error", err)
	}
	if health == nil {
		health = &signals.HealthSnapshot{}
	}

	var env *signals.EnvironmentSnapshot
	if mon.env != nil {
		env, err = mon.env.Current(ctx, mon.cfg.Location)
		if err != nil {
			mon.logger.Warn("environment snapshot unavailable", "error", err)
			env = nil
		}
	}

	current, ok := mon.model.Current()
	if !ok || !mon.model.SameDay(current.LastUpdated, now) {
		snap := mon.model.StartDay(now, health.Sleep, health.HRV)
		mon.logger.Info("morning charge computed",
			"level", snap.CurrentLevel,
			"state", snap.State(),
		)
		if err := mon.save(ctx, snap); err != nil {
			return snap, err
		}
	}

	activeEnergy, stress := 0.0, NeutralScore
	if health.Activity != nil {
		activeEnergy = health.Activity.ActiveEnergy
		stress = health.Activity.StressLevel
	}

	snap := mon.model.UpdateDrain(now, activeEnergy, stress, EnvironmentFactor(env), mon.cfg.Mode)
	mon.logger.Debug("battery ticked",
		"level", snap.CurrentLevel,
		"drain_rate", snap.DrainRate,
		"state", snap.State(),
	)
	return snap, mon.save(ctx, snap)
}

func (mon *Monitor) save(ctx context.Context, snap model.BatterySnapshot) error {
	if mon.store == nil {
		return nil
	}
	if err := mon.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Start schedules Refresh every interval, running the first one immediately.
// Runs never overlap; a run that would start while another is in progress
// is skipped until the next interval.
func (mon *Monitor) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler(gocron.WithLocation(mon.cfg.TimeZone))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(mon.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := mon.Refresh(ctx); err != nil {
				mon.logger.Error("battery refresh failed", "error", err)
			}
		}),
		gocron.WithName("battery-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule battery refresh: %w", err)
	}

	mon.scheduler = s
	s.Start()
	mon.logger.Info("battery monitor started", "interval", mon.cfg.Interval.String(), "mode", mon.cfg.Mode)
	return nil
}

// Stop shuts the scheduler down and waits for a running refresh to finish.
func (mon *Monitor) Stop() error {
	if mon.scheduler == nil {
		return nil
	}
	return mon.scheduler.Shutdown()
}
