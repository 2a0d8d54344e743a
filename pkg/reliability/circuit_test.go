package reliability_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fail(cb *reliability.CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		if ticket, err := cb.Allow(); err == nil {
			cb.Record(ticket, errBoom)
		}
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})

	fail(cb, 2)
	assert.Equal(t, reliability.CircuitClosed, cb.State())

	fail(cb, 1)
	assert.Equal(t, reliability.CircuitOpen, cb.State())
	_, err := cb.Allow()
	assert.ErrorIs(t, err, reliability.ErrCircuitOpen)

	snap := cb.Snapshot()
	assert.Equal(t, 3, snap.ConsecutiveFailures)
	assert.False(t, snap.OpenedAt.IsZero())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{FailureThreshold: 3})

	fail(cb, 2)
	ticket, err := cb.Allow()
	require.NoError(t, err)
	cb.Record(ticket, nil)
	fail(cb, 2)

	assert.Equal(t, reliability.CircuitClosed, cb.State())
	assert.Equal(t, 2, cb.Snapshot().ConsecutiveFailures)
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	clock := newFakeClock()
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{FailureThreshold: 1, Cooldown: 30 * time.Second})
	cb.SetClock(clock.Now)

	fail(cb, 1)
	_, err := cb.Allow()
	require.ErrorIs(t, err, reliability.ErrCircuitOpen)

	clock.Advance(30 * time.Second)
	assert.Equal(t, reliability.CircuitHalfOpen, cb.State())

	probe, err := cb.Allow()
	require.NoError(t, err, "first caller after cooldown is the probe")
	assert.True(t, probe.Probe())
	_, err = cb.Allow()
	assert.ErrorIs(t, err, reliability.ErrCircuitOpen, "only one probe at a time")

	cb.Record(probe, nil)
	assert.Equal(t, reliability.CircuitClosed, cb.State())
	next, err := cb.Allow()
	assert.NoError(t, err)
	assert.False(t, next.Probe())
}

func TestCircuitBreaker_ProbeFailureRestartsCooldown(t *testing.T) {
	clock := newFakeClock()
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{FailureThreshold: 2, Cooldown: 10 * time.Second})
	cb.SetClock(clock.Now)

	fail(cb, 2)
	clock.Advance(10 * time.Second)

	probe, err := cb.Allow()
	require.NoError(t, err)
	cb.Record(probe, errBoom)
	assert.Equal(t, reliability.CircuitOpen, cb.State())

	clock.Advance(9 * time.Second)
	_, err = cb.Allow()
	assert.ErrorIs(t, err, reliability.ErrCircuitOpen)

	clock.Advance(time.Second)
	_, err = cb.Allow()
	assert.NoError(t, err)
}

func TestCircuitBreaker_AbandonFreesProbe(t *testing.T) {
	clock := newFakeClock()
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.SetClock(clock.Now)

	fail(cb, 1)
	clock.Advance(time.Second)

	probe, err := cb.Allow()
	require.NoError(t, err)
	cb.Abandon(probe)
	assert.Equal(t, reliability.CircuitHalfOpen, cb.State())
	_, err = cb.Allow()
	assert.NoError(t, err, "abandoned probe lets the next caller probe")
}

func TestCircuitBreaker_StaleOutcomeDoesNotSettleProbe(t *testing.T) {
	clock := newFakeClock()
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.SetClock(clock.Now)

	// admitted while closed, still running when the circuit opens
	slow, err := cb.Allow()
	require.NoError(t, err)
	fail(cb, 1)
	clock.Advance(time.Second)

	probe, err := cb.Allow()
	require.NoError(t, err)

	cb.Record(slow, nil)
	assert.Equal(t, reliability.CircuitHalfOpen, cb.State(), "late success must not close the circuit")
	_, err = cb.Allow()
	assert.ErrorIs(t, err, reliability.ErrCircuitOpen, "probe is still outstanding")

	cb.Record(slow, errBoom)
	assert.Equal(t, reliability.CircuitHalfOpen, cb.State(), "late failure must not reopen the circuit")

	cb.Abandon(slow)
	_, err = cb.Allow()
	assert.ErrorIs(t, err, reliability.ErrCircuitOpen, "stale abandon keeps the probe slot")

	cb.Record(probe, nil)
	assert.Equal(t, reliability.CircuitClosed, cb.State())
	assert.Zero(t, cb.Snapshot().ConsecutiveFailures)
}

func TestCircuitBreaker_StaleFailureAfterReopenIsIgnored(t *testing.T) {
	clock := newFakeClock()
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{FailureThreshold: 2, Cooldown: time.Second})
	cb.SetClock(clock.Now)

	slow, err := cb.Allow()
	require.NoError(t, err)
	fail(cb, 2)
	clock.Advance(time.Second)
	probe, err := cb.Allow()
	require.NoError(t, err)
	cb.Record(probe, nil)
	require.Equal(t, reliability.CircuitClosed, cb.State())

	// a failure from before the outage does not count toward the new window
	cb.Record(slow, errBoom)
	assert.Zero(t, cb.Snapshot().ConsecutiveFailures)
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := reliability.NewCircuitBreaker(reliability.BreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Second,
		OnStateChange: func(from, to reliability.CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	cb.SetClock(clock.Now)

	fail(cb, 1)
	clock.Advance(time.Second)
	probe, err := cb.Allow()
	require.NoError(t, err)
	cb.Record(probe, nil)
	cb.Reset()

	assert.Equal(t, []string{"closed>open", "open>half_open", "half_open>closed"}, transitions)
}

func TestCircuitState_MarshalText(t *testing.T) {
	b, err := reliability.CircuitHalfOpen.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "half_open", string(b))
	assert.Equal(t, "unknown", reliability.CircuitState(9).String())
}

func TestBreakers_PerEndpoint(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]reliability.CircuitState{}
	b := reliability.NewBreakers(reliability.BreakerConfig{FailureThreshold: 1}, func(endpoint string, _, to reliability.CircuitState) {
		mu.Lock()
		defer mu.Unlock()
		seen[endpoint] = to
	})

	a := b.Get("a")
	assert.Same(t, a, b.Get("a"))
	fail(a, 1)

	assert.Equal(t, reliability.CircuitOpen, b.Get("a").State())
	assert.Equal(t, reliability.CircuitClosed, b.Get("b").State(), "endpoints are isolated")

	snaps := b.Snapshots()
	assert.Len(t, snaps, 2)
	assert.Equal(t, reliability.CircuitOpen, snaps["a"].State)
	assert.Equal(t, reliability.CircuitOpen, seen["a"])
}

func TestBreakers_SetClockAppliesToExisting(t *testing.T) {
	clock := newFakeClock()
	b := reliability.NewBreakers(reliability.BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute}, nil)
	cb := b.Get("x")
	b.SetClock(clock.Now)

	fail(cb, 1)
	clock.Advance(time.Minute)
	assert.Equal(t, reliability.CircuitHalfOpen, cb.State())

	later := b.Get("y")
	fail(later, 1)
	clock.Advance(time.Minute)
	assert.Equal(t, reliability.CircuitHalfOpen, later.State(), "new breakers share the clock")
}
