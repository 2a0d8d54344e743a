// Package reliability isolates the remote analysis dependency: a circuit
// breaker per endpoint, bounded retry with exponential backoff and jitter,
// a per-attempt timeout and an optional outbound rate limit.
package reliability

import (
	"sync"
	"time"
)

// CircuitState is the breaker state.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed calls that opens
	// the circuit. Default: 3.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before one probe is let
	// through. Default: 30s.
	Cooldown time.Duration

	// OnStateChange is called on every transition, with the breaker's lock
	// held. It must not call back into the breaker.
	OnStateChange func(from, to CircuitState)
}

// CircuitSnapshot is a point-in-time view of a breaker.
type CircuitSnapshot struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            time.Time    `json:"opened_at,omitempty"`
}

// Ticket is the permission handed out by Allow. Outcomes are only counted
// against the state the ticket was issued in.
type Ticket struct {
	generation uint64
	probe      bool
}

// Probe reports whether the ticket admits the half-open probe.
func (t Ticket) Probe() bool { return t.probe }

// CircuitBreaker guards a single endpoint.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	generation          uint64 // bumped on every transition
	consecutiveFailures int
	openedAt            time.Time
	probing             bool

	nowFunc func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed, nowFunc: time.Now}
}

// SetClock overrides the time source.
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.nowFunc = now
}

// Allow reserves permission for one call. It returns ErrCircuitOpen while
// open, and while half-open if the single probe is already in flight.
// Every nil return must be followed by exactly one Record or Abandon with
// the returned ticket.
func (cb *CircuitBreaker) Allow() (Ticket, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return Ticket{}, ErrCircuitOpen
		}
		cb.transition(CircuitHalfOpen)
		cb.probing = true
		return Ticket{generation: cb.generation, probe: true}, nil
	case CircuitHalfOpen:
		if cb.probing {
			return Ticket{}, ErrCircuitOpen
		}
		cb.probing = true
		return Ticket{generation: cb.generation, probe: true}, nil
	default:
		return Ticket{generation: cb.generation}, nil
	}
}

// Record reports the outcome of the call admitted by t. Outcomes of calls
// admitted before the last transition are dropped, so a slow call let
// through while closed cannot settle a half-open probe.
func (cb *CircuitBreaker) Record(t Ticket, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if t.generation != cb.generation {
		return
	}
	if t.probe {
		cb.probing = false
	}

	if err == nil {
		cb.consecutiveFailures = 0
		if t.probe {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.consecutiveFailures++
	switch {
	case t.probe:
		cb.open()
	case cb.state == CircuitClosed && cb.consecutiveFailures >= cb.cfg.FailureThreshold:
		cb.open()
	}
}

// Abandon releases the call admitted by t without counting it, for calls
// the caller gave up on before they finished.
func (cb *CircuitBreaker) Abandon(t Ticket) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if t.probe && t.generation == cb.generation {
		cb.probing = false
	}
}

// State returns the current state, reporting half_open once the cooldown
// has elapsed even if no probe has been attempted yet.
func (cb *CircuitBreaker) State() CircuitState {
	return cb.Snapshot().State
}

// Snapshot returns state and counters for observability.
func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.state
	if state == CircuitOpen && cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		state = CircuitHalfOpen
	}
	return CircuitSnapshot{State: state, ConsecutiveFailures: cb.consecutiveFailures, OpenedAt: cb.openedAt}
}

// Reset forces the circuit closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.probing = false
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.nowFunc()
	cb.transition(CircuitOpen)
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if from == to {
		return
	}
	cb.generation++
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// Breakers is a registry of per-endpoint circuit breakers.
type Breakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      BreakerConfig
	onChange func(endpoint string, from, to CircuitState)
	nowFunc  func() time.Time
}

// NewBreakers creates a registry. onChange may be nil.
func NewBreakers(cfg BreakerConfig, onChange func(endpoint string, from, to CircuitState)) *Breakers {
	return &Breakers{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
		onChange: onChange,
		nowFunc:  time.Now,
	}
}

// SetClock overrides the time source of existing and future breakers.
func (b *Breakers) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowFunc = now
	for _, cb := range b.breakers {
		cb.SetClock(now)
	}
}

// Get returns the breaker for endpoint, creating it if needed.
func (b *Breakers) Get(endpoint string) *CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.breakers[endpoint]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok = b.breakers[endpoint]; ok {
		return cb
	}

	cfg := b.cfg
	if b.onChange != nil {
		cfg.OnStateChange = func(from, to CircuitState) { b.onChange(endpoint, from, to) }
	}
	cb = NewCircuitBreaker(cfg)
	cb.nowFunc = b.nowFunc
	b.breakers[endpoint] = cb
	return cb
}

// Snapshots returns the state of every known endpoint.
func (b *Breakers) Snapshots() map[string]CircuitSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]CircuitSnapshot, len(b.breakers))
	for name, cb := range b.breakers {
		out[name] = cb.Snapshot()
	}
	return out
}
