// Package orchestrator decides, per analysis request, whether to answer from
// cache, call the remote service, or fall back to the local analysis.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/ogulcanaydogan/energy-advisor/pkg/budget"
	"github.com/ogulcanaydogan/energy-advisor/pkg/cache"
	"github.com/ogulcanaydogan/energy-advisor/pkg/fallback"
	"github.com/ogulcanaydogan/energy-advisor/pkg/metrics"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
	"github.com/ogulcanaydogan/energy-advisor/pkg/remote"
)

// Config tunes result caching.
type Config struct {
	// CacheTTL bounds how long a hybrid result is served from cache. The
	// result's own ValidUntil is never exceeded.
	CacheTTL time.Duration

	// DegradedTTL caches fallback and error results. Zero disables.
	DegradedTTL time.Duration

	// ContextRetention is how long a user's last context is remembered
	// for delta invalidation.
	ContextRetention time.Duration

	// Location fills in missing time buckets.
	Location *time.Location
}

// Deps are the collaborators of an Orchestrator. Any may be nil: Cache,
// Fallback and Guard get defaults, and a nil Remote yields static_only
// results.
type Deps struct {
	Cache     *cache.MultiTierCache
	Fallback  *fallback.Generator
	Gate      *budget.Gate
	Estimator *budget.Estimator
	Guard     *reliability.Guard
	Remote    remote.Service
	Usage     *budget.UsageTracker
	Metrics   *metrics.Metrics
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg  Config
	deps Deps

	flight  singleflight.Group
	last    *gocache.Cache // userID -> model.AnalysisContext
	logger  *slog.Logger
	nowFunc func() time.Time
}

// New creates an orchestrator.
func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.ContextRetention <= 0 {
		cfg.ContextRetention = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Fallback == nil {
		deps.Fallback = fallback.NewGenerator(0)
	}
	if deps.Cache == nil {
		// memory-only; New only fails on a non-positive size
		deps.Cache, _ = cache.New(cache.DefaultConfig(), nil, logger)
	}
	if deps.Remote != nil && deps.Guard == nil {
		deps.Guard = reliability.NewGuard(reliability.GuardConfig{}, logger, nil)
	}

	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		last:    gocache.New(cfg.ContextRetention, cfg.ContextRetention/2),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetClock overrides the time source.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.nowFunc = now
}

// RequestAnalysis always returns a result; failures are reported through
// its Source. Concurrent requests with the same fingerprint share one
// remote call. If ctx ends first the caller gets the local fallback while
// the shared call keeps running and populates the cache.
func (o *Orchestrator) RequestAnalysis(ctx context.Context, actx model.AnalysisContext) model.AnalysisResult {
	actx = o.normalize(actx)
	static := o.deps.Fallback.Static(actx)
	key := o.deps.Cache.Key(actx)

	o.trackContext(ctx, actx)

	if cached, hit := o.deps.Cache.Get(ctx, key); cached != nil {
		o.deps.Metrics.ObserveCache(string(hit), true, hit.Exact())
		out := *cached
		out.Source = model.SourceCached
		out.Fingerprint = key.Fingerprint
		return o.finish(out)
	}
	o.deps.Metrics.ObserveCache(string(cache.HitMiss), false, false)

	if o.deps.Remote == nil {
		return o.finish(o.degraded(ctx, actx, key, static, model.SourceStaticOnly))
	}

	ch := o.flight.DoChan(key.Fingerprint, func() (any, error) {
		return o.enhance(context.WithoutCancel(ctx), actx, key, static), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			o.deps.Metrics.ObserveDeduplicated()
		}
		return o.finish(res.Val.(model.AnalysisResult))
	case <-ctx.Done():
		o.logger.Info("analysis abandoned by caller", "user_id", actx.UserID, "error", ctx.Err())
		r := o.deps.Fallback.Result(static, model.SourceFallback, o.nowFunc())
		r.Fingerprint = key.Fingerprint
		return o.finish(r)
	}
}

// enhance runs the budget and remote stages for one fingerprint.
func (o *Orchestrator) enhance(ctx context.Context, actx model.AnalysisContext, key cache.Key, static model.StaticAnalysis) model.AnalysisResult {
	svc := o.deps.Remote
	req := remote.NewRequest(key.Fingerprint, actx, static)

	estimate := 0.0
	if o.deps.Estimator != nil {
		prompt, err := req.Prompt()
		if err == nil {
			estimate, _, err = o.deps.Estimator.Estimate(remote.SystemPrompt, prompt)
		}
		if err != nil {
			o.logger.Warn("cost estimate unavailable", "user_id", actx.UserID, "error", err)
		}
	}

	var reservation *budget.Reservation
	if o.deps.Gate != nil {
		res, decision, err := o.deps.Gate.Reserve(ctx, actx.UserID, estimate)
		if err != nil {
			o.logger.Error("budget check failed", "user_id", actx.UserID, "error", err)
		}
		if !decision.Allowed {
			o.logger.Info("remote analysis skipped by budget",
				"user_id", actx.UserID,
				"reason", decision.Reason,
				"spent_today", decision.Ledger.SpentToday,
				"daily_cap", decision.Ledger.DailyCapUnits,
			)
			o.deps.Metrics.ObserveBudgetRejection(decision.Reason)
			return o.degraded(ctx, actx, key, static, model.SourceFallback)
		}
		reservation = res
	}

	start := time.Now()
	resp, err := reliability.Call(ctx, o.deps.Guard, svc.Endpoint(), func(ctx context.Context) (*remote.Response, error) {
		return svc.Analyze(ctx, req)
	})
	o.deps.Metrics.ObserveRemote(svc.Endpoint(), time.Since(start), err, errorClass(err))

	if err != nil {
		reservation.Release()
		o.logger.Warn("remote analysis failed",
			"user_id", actx.UserID,
			"endpoint", svc.Endpoint(),
			"class", errorClass(err),
			"error", err,
		)
		return o.degraded(ctx, actx, key, static, model.SourceAIError)
	}

	cost := o.charge(ctx, actx, key, resp, estimate, reservation)
	now := o.nowFunc().UTC()
	result := model.AnalysisResult{
		Source:      model.SourceHybrid,
		Static:      static,
		Enhanced:    &resp.Analysis,
		Fingerprint: key.Fingerprint,
		GeneratedAt: now,
		ValidUntil:  now.Add(o.deps.Fallback.Epoch()),
	}
	o.store(ctx, key, actx.UserID, result, o.cfg.CacheTTL)

	o.logger.Debug("hybrid analysis produced",
		"user_id", actx.UserID,
		"confidence", resp.Analysis.Confidence,
		"cost_units", cost,
	)
	return result
}

// charge commits actual spend and records usage. Reported usage of zero
// tokens is billed at the estimate.
func (o *Orchestrator) charge(ctx context.Context, actx model.AnalysisContext, key cache.Key, resp *remote.Response, estimate float64, reservation *budget.Reservation) float64 {
	cost := estimate
	if o.deps.Estimator != nil && (resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0) {
		actual, err := o.deps.Estimator.Actual(resp.Usage.InputTokens, resp.Usage.OutputTokens)
		if err != nil {
			o.logger.Warn("actual cost unavailable, charging estimate", "error", err)
		} else {
			cost = actual
		}
	}

	if _, err := reservation.Commit(ctx, cost); err != nil {
		o.logger.Error("record spend failed", "user_id", actx.UserID, "error", err)
	}
	o.deps.Metrics.ObserveSpend(cost)

	if o.deps.Usage != nil {
		rec := &model.UsageRecord{
			UserID:       actx.UserID,
			Provider:     resp.Provider,
			Model:        resp.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostUnits:    cost,
			Fingerprint:  key.Fingerprint,
			Timestamp:    o.nowFunc().UTC(),
		}
		if err := o.deps.Usage.Track(ctx, rec); err != nil {
			o.logger.Error("track usage failed", "user_id", actx.UserID, "error", err)
		}
	}
	return cost
}

func (o *Orchestrator) degraded(ctx context.Context, actx model.AnalysisContext, key cache.Key, static model.StaticAnalysis, source model.Source) model.AnalysisResult {
	r := o.deps.Fallback.Result(static, source, o.nowFunc())
	r.Fingerprint = key.Fingerprint
	o.store(ctx, key, actx.UserID, r, o.cfg.DegradedTTL)
	return r
}

func (o *Orchestrator) store(ctx context.Context, key cache.Key, userID string, r model.AnalysisResult, ttl time.Duration) {
	if left := r.ValidUntil.Sub(o.nowFunc()); left < ttl {
		ttl = left
	}
	if ttl <= 0 {
		return
	}
	if err := o.deps.Cache.Put(ctx, key, userID, r, ttl); err != nil {
		o.logger.Warn("cache write failed", "user_id", userID, "error", err)
	}
}

// trackContext invalidates the user's cached family when the new context
// differs materially from the previous one.
func (o *Orchestrator) trackContext(ctx context.Context, actx model.AnalysisContext) {
	if prev, ok := o.last.Get(actx.UserID); ok {
		old := prev.(model.AnalysisContext)
		reason := o.deps.Cache.Changed(old, actx)
		if reason != "" {
			if _, err := o.deps.Cache.InvalidateOnDelta(ctx, old, actx); err != nil {
				o.logger.Warn("cache invalidation failed", "user_id", actx.UserID, "error", err)
			}
			o.deps.Metrics.ObserveInvalidation(reason)
		}
	}
	o.last.SetDefault(actx.UserID, actx)
}

func (o *Orchestrator) normalize(actx model.AnalysisContext) model.AnalysisContext {
	actx.Tags = model.NormalizeTags(actx.Tags)
	if actx.TimeBucket == "" {
		actx.TimeBucket = model.BucketFor(o.nowFunc().In(o.cfg.Location))
	}
	actx.Battery.CurrentLevel = model.ClampLevel(actx.Battery.CurrentLevel)
	return actx
}

func (o *Orchestrator) finish(r model.AnalysisResult) model.AnalysisResult {
	o.deps.Metrics.ObserveResult(string(r.Source))
	return r
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, reliability.ErrCircuitOpen):
		return "circuit_open"
	case reliability.IsMalformed(err):
		return "malformed"
	case reliability.IsTransient(err):
		return "transient"
	default:
		return "rejected"
	}
}
