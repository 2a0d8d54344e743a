package reliability

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// GuardConfig configures a Guard.
type GuardConfig struct {
	Breaker BreakerConfig
	Retry   RetryConfig

	// CallsPerSecond limits outbound attempts across all endpoints.
	// Zero disables the limit.
	CallsPerSecond float64
}

// Guard wraps remote calls with a per-endpoint circuit breaker and retry.
// A guarded call that exhausts its attempts counts as one failure toward
// the circuit threshold.
type Guard struct {
	breakers *Breakers
	retry    RetryConfig
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewGuard creates a guard. onChange, if non-nil, is told about every
// circuit transition.
func NewGuard(cfg GuardConfig, logger *slog.Logger, onChange func(endpoint string, from, to CircuitState)) *Guard {
	g := &Guard{retry: cfg.Retry, logger: logger}

	g.breakers = NewBreakers(cfg.Breaker, func(endpoint string, from, to CircuitState) {
		logger.Warn("circuit state changed", "endpoint", endpoint, "from", from.String(), "to", to.String())
		if onChange != nil {
			onChange(endpoint, from, to)
		}
	})

	if cfg.CallsPerSecond > 0 {
		burst := int(cfg.CallsPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), burst)
	}
	return g
}

// Breakers exposes the circuit registry.
func (g *Guard) Breakers() *Breakers {
	return g.breakers
}

// State returns the circuit state of endpoint.
func (g *Guard) State(endpoint string) CircuitState {
	return g.breakers.Get(endpoint).State()
}

// Do runs fn against endpoint. It returns ErrCircuitOpen without calling fn
// when the circuit is open. Cancelling ctx aborts the call without counting
// it against the endpoint.
func (g *Guard) Do(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	cb := g.breakers.Get(endpoint)
	ticket, err := cb.Allow()
	if err != nil {
		return err
	}

	cfg := g.retry
	userOnRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		g.logger.Warn("retrying remote call",
			"endpoint", endpoint,
			"attempt", attempt,
			"backoff", delay.String(),
			"error", err,
		)
		if userOnRetry != nil {
			userOnRetry(attempt, err, delay)
		}
	}

	err = Do(ctx, cfg, func(actx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(actx); err != nil {
				return NewTransientError(err, 0)
			}
		}
		return fn(actx)
	})

	if err != nil && ctx.Err() != nil {
		cb.Abandon(ticket)
		return err
	}
	if IsMalformed(err) {
		g.logger.Warn("malformed remote response", "endpoint", endpoint, "error", err)
	}
	cb.Record(ticket, err)
	return err
}

// Call is Guard.Do for functions that return a value.
func Call[T any](ctx context.Context, g *Guard, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, endpoint, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
