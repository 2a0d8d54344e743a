package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/internal/config"
	"github.com/ogulcanaydogan/energy-advisor/pkg/alerts"
	"github.com/ogulcanaydogan/energy-advisor/pkg/budget"
	"github.com/ogulcanaydogan/energy-advisor/pkg/cache"
	"github.com/ogulcanaydogan/energy-advisor/pkg/energy"
	"github.com/ogulcanaydogan/energy-advisor/pkg/fallback"
	"github.com/ogulcanaydogan/energy-advisor/pkg/metrics"
	"github.com/ogulcanaydogan/energy-advisor/pkg/orchestrator"
	"github.com/ogulcanaydogan/energy-advisor/pkg/pricing"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
	"github.com/ogulcanaydogan/energy-advisor/pkg/remote"
	"github.com/ogulcanaydogan/energy-advisor/pkg/signals"
	"github.com/ogulcanaydogan/energy-advisor/pkg/storage"
)

// app is the fully wired component graph shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	location *time.Location

	store      *storage.SQLite
	registry   *pricing.Registry
	dispatcher *alerts.Dispatcher
	metrics    *metrics.Metrics

	monitor *energy.Monitor
	gate    *budget.Gate
	usage   *budget.UsageTracker
	guard   *reliability.Guard
	cache   *cache.MultiTierCache
	orch    *orchestrator.Orchestrator

	closers []func() error
}

func initApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  newLogger(cfg),
		metrics: metrics.New(),
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.location = loc

	a.registry, err = initRegistry(cfg)
	if err != nil {
		return nil, err
	}

	a.store, err = initStorage(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	a.dispatcher = alerts.NewDispatcher(initNotifiers(cfg), a.logger)

	a.monitor = energy.NewMonitor(
		energy.NewModel(cfg.EnergyModelConfig()),
		healthProvider(cfg),
		environmentProvider(cfg),
		a.store,
		energy.MonitorConfig{
			Interval: cfg.Energy.TickInterval,
			Mode:     energy.Mode(cfg.Energy.Mode),
			Location: signals.Location{Latitude: cfg.Energy.Latitude, Longitude: cfg.Energy.Longitude},
			TimeZone: loc,
		},
		a.logger,
	)
	if err := a.monitor.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.gate = budget.NewGate(a.store, budget.Config{
		DailyCapUnits: cfg.Budget.DailyCapUnits,
		Location:      loc,
		WarnFraction:  cfg.Budget.WarnFraction,
	}, a.dispatcher, a.logger)
	a.usage = budget.NewUsageTracker(a.store, a.logger)

	a.guard = reliability.NewGuard(reliability.GuardConfig{
		Breaker: reliability.BreakerConfig{
			FailureThreshold: cfg.Reliability.FailureThreshold,
			Cooldown:         cfg.Reliability.Cooldown,
		},
		Retry: reliability.RetryConfig{
			MaxAttempts:    cfg.Reliability.MaxAttempts,
			InitialBackoff: cfg.Reliability.InitialBackoff,
			MaxBackoff:     cfg.Reliability.MaxBackoff,
			Multiplier:     cfg.Reliability.Multiplier,
			JitterFraction: cfg.Reliability.Jitter,
			AttemptTimeout: cfg.Reliability.CallTimeout,
		},
		CallsPerSecond: cfg.Reliability.CallsPerSecond,
	}, a.logger, orchestrator.CircuitObserver(a.dispatcher, a.metrics))

	tier, err := a.cacheTier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache, err = cache.New(cache.Config{
		MemorySize:       cfg.Cache.MemorySize,
		LevelBucket:      cfg.Cache.LevelBucket,
		SimilarTolerance: cfg.Cache.SimilarLevelTolerance,
		InvalidateDelta:  cfg.Cache.InvalidateLevelDelta,
	}, tier, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	svc, err := newRemote(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := orchestrator.Deps{
		Cache:    a.cache,
		Fallback: fallback.NewGenerator(cfg.Analysis.Epoch),
		Gate:     a.gate,
		Guard:    a.guard,
		Usage:    a.usage,
		Metrics:  a.metrics,
	}
	if svc != nil {
		deps.Remote = svc
		deps.Estimator = budget.NewEstimator(a.registry, svc.Provider(), svc.Model(), cfg.Budget.ExpectedOutputTokens)
	}
	a.orch = orchestrator.New(deps, orchestrator.Config{
		CacheTTL:    cfg.Cache.TTL,
		DegradedTTL: cfg.Cache.DegradedTTL,
		Location:    loc,
	}, a.logger)

	return a, nil
}

func (a *app) cacheTier(ctx context.Context) (cache.Tier, error) {
	if a.cfg.Cache.Backend != "redis" {
		return cache.NewStorageTier(a.store), nil
	}
	t, err := cache.NewRedisTier(ctx, a.cfg.Cache.RedisURL, "")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, t.Close)
	return t, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newRemote(cfg *config.Config) (remote.Service, error) {
	switch cfg.Remote.Kind {
	case "anthropic":
		svc, err := remote.NewAnthropicService(remote.AnthropicConfig{
			APIKey:  cfg.Remote.APIKey,
			Model:   cfg.Remote.Model,
			BaseURL: cfg.Remote.URL,
		})
		if err != nil {
			return nil, fmt.Errorf("configure remote: %w", err)
		}
		return svc, nil
	case "http":
		svc, err := remote.NewHTTPService(remote.HTTPConfig{
			URL:      cfg.Remote.URL,
			APIKey:   cfg.Remote.APIKey,
			Provider: cfg.Remote.Provider,
			Model:    cfg.Remote.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("configure remote: %w", err)
		}
		return svc, nil
	default:
		return nil, nil
	}
}

func healthProvider(cfg *config.Config) signals.HealthSnapshotProvider {
	if cfg.Signals.HealthFile == "" {
		return signals.StaticHealth{}
	}
	return signals.NewFileHealth(cfg.Signals.HealthFile)
}

func environmentProvider(cfg *config.Config) signals.EnvironmentSnapshotProvider {
	if cfg.Signals.EnvironmentFile == "" {
		return nil
	}
	return signals.NewFileEnvironment(cfg.Signals.EnvironmentFile)
}

func (a *app) now() time.Time {
	return time.Now().In(a.location)
}
