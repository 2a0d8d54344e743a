// Package energy maintains the user's decaying battery level: a morning
// charge computed from sleep and HRV, and a continuous drain applied on every
// tick.
package energy

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/signals"
)

// Model holds the current battery snapshot. All mutations are serialized;
// readers receive copies.
type Model struct {
	cfg Config

	mu      sync.Mutex
	current model.BatterySnapshot
	started bool

	events broadcaster
}

// NewModel creates an energy model with no snapshot yet.
func NewModel(cfg Config) *Model {
	return &Model{cfg: applyDefaults(cfg)}
}

// Config returns the effective configuration.
func (m *Model) Config() Config {
	return m.cfg
}

// ComputeMorningCharge blends the sleep and HRV scores into a 0-100 level.
// previousLevel is the level at which the previous day ended, or nil when
// there is no history; a critical previous day applies the recovery penalty.
func (m *Model) ComputeMorningCharge(sleep *signals.SleepSummary, hrv *signals.HRVReading, previousLevel *float64) float64 {
	sleepScore := SleepScore(sleep, m.cfg.SleepTarget, m.cfg.DeepSleepTarget)
	hrvScore := HRVScore(hrv)

	level := 100 * (m.cfg.SleepWeight*sleepScore + (1-m.cfg.SleepWeight)*hrvScore)
	if previousLevel != nil && model.StateFor(*previousLevel) == model.StateCritical {
		level *= m.cfg.CriticalPenalty
	}
	return model.ClampLevel(level)
}

// ComputeDrainRate returns the signed drain in percent per hour.
// Each load term is scaled by the mode; an unknown mode uses standard scaling.
func (m *Model) ComputeDrainRate(activeEnergy, stressLevel, environmentFactor float64, mode Mode) float64 {
	scale, ok := m.cfg.Modes[mode]
	if !ok {
		scale = m.cfg.Modes[ModeStandard]
	}

	activity := m.cfg.ActivityDrain * (max(activeEnergy, 0) / 100) * scale.Activity
	stress := m.cfg.StressDrain * clamp01(stressLevel) * scale.Stress
	env := m.cfg.EnvironmentDrain * clamp01(environmentFactor) * scale.Environment

	return -(m.cfg.BaselineDrain + activity + stress + env)
}

// StartDay supersedes the snapshot with a fresh morning charge at now. The
// previous day is judged at its own end, so overnight drain after the day
// boundary never triggers the critical penalty.
func (m *Model) StartDay(now time.Time, sleep *signals.SleepSummary, hrv *signals.HRVReading) model.BatterySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var previous *float64
	prevState := model.BatteryState("")
	drain := -m.cfg.BaselineDrain
	if m.started {
		ended := m.dayEndLevel(now)
		previous = &ended
		prevState = model.StateFor(ended)
		drain = m.current.DrainRate
	}

	charge := m.ComputeMorningCharge(sleep, hrv, previous)
	m.current = model.NewBatterySnapshot(uuid.New().String(), charge, charge, drain, now)
	m.started = true

	m.events.publish(Event{Kind: EventDayStarted, Previous: prevState, Snapshot: m.current})
	return m.current
}

// Tick applies the drain accumulated since the last update. Calling it twice
// with the same now is a no-op the second time, as is a now earlier than the
// last update. Before any day has started, a neutral morning charge is used.
func (m *Model) Tick(now time.Time) model.BatterySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		charge := m.ComputeMorningCharge(nil, nil, nil)
		m.current = model.NewBatterySnapshot(uuid.New().String(), charge, charge, -m.cfg.BaselineDrain, now)
		m.started = true
		m.events.publish(Event{Kind: EventDayStarted, Snapshot: m.current})
		return m.current
	}

	prev := m.current
	next := m.advance(now)
	if next.ID != prev.ID {
		m.events.publish(Event{Kind: EventTicked, Previous: prev.State(), Snapshot: next})
		if next.State() != prev.State() {
			m.events.publish(Event{Kind: EventStateChanged, Previous: prev.State(), Snapshot: next})
		}
	}
	return next
}

// SetDrainRate brings the level up to now at the old rate, then switches to rate.
func (m *Model) SetDrainRate(now time.Time, rate float64) model.BatterySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		charge := m.ComputeMorningCharge(nil, nil, nil)
		m.current = model.NewBatterySnapshot(uuid.New().String(), charge, charge, rate, now)
		m.started = true
		m.events.publish(Event{Kind: EventDayStarted, Snapshot: m.current})
		return m.current
	}

	prev := m.current
	next := m.advance(now)
	if rate == next.DrainRate {
		return next
	}
	next = model.NewBatterySnapshot(uuid.New().String(), next.CurrentLevel, next.MorningCharge, rate, next.LastUpdated)
	m.current = next

	m.events.publish(Event{Kind: EventDrainChanged, Previous: prev.State(), Snapshot: next})
	if next.State() != prev.State() {
		m.events.publish(Event{Kind: EventStateChanged, Previous: prev.State(), Snapshot: next})
	}
	return next
}

// UpdateDrain recomputes the drain rate from current loads and applies it at now.
func (m *Model) UpdateDrain(now time.Time, activeEnergy, stressLevel, environmentFactor float64, mode Mode) model.BatterySnapshot {
	return m.SetDrainRate(now, m.ComputeDrainRate(activeEnergy, stressLevel, environmentFactor, mode))
}

// Restore seeds the model with a previously persisted snapshot.
func (m *Model) Restore(snap model.BatterySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = model.NewBatterySnapshot(snap.ID, snap.CurrentLevel, snap.MorningCharge, snap.DrainRate, snap.LastUpdated)
	m.started = true
}

// Current returns a copy of the latest snapshot. ok is false before the
// first tick or day start.
func (m *Model) Current() (snap model.BatterySnapshot, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.started
}

// Subscribe registers a listener for snapshot events. The returned function
// unsubscribes and closes the channel.
func (m *Model) Subscribe(buffer int) (<-chan Event, func()) {
	return m.events.subscribe(buffer)
}

// DayBounds returns the observation day containing t.
func (m *Model) DayBounds(t time.Time) (start, end time.Time) {
	start, end = model.DayBounds(t.Add(-m.cfg.DayStart), m.cfg.Location)
	return start.Add(m.cfg.DayStart), end.Add(m.cfg.DayStart)
}

// SameDay reports whether a and b fall in the same observation day.
func (m *Model) SameDay(a, b time.Time) bool {
	startA, _ := m.DayBounds(a)
	startB, _ := m.DayBounds(b)
	return startA.Equal(startB)
}

// dayEndLevel is the level the current snapshot's day ended at: drain is
// applied up to the end of that day, or up to now if the day is still open.
// Time after the boundary, overnight, never counts. Caller must hold m.mu.
func (m *Model) dayEndLevel(now time.Time) float64 {
	_, end := m.DayBounds(m.current.LastUpdated)
	until := now
	if end.Before(until) {
		until = end
	}
	elapsed := until.Sub(m.current.LastUpdated)
	if elapsed <= 0 {
		return m.current.CurrentLevel
	}
	return model.ClampLevel(m.current.CurrentLevel + m.current.DrainRate*elapsed.Hours())
}

// advance applies drain up to now. Caller must hold m.mu.
func (m *Model) advance(now time.Time) model.BatterySnapshot {
	elapsed := now.Sub(m.current.LastUpdated)
	if elapsed <= 0 {
		return m.current
	}
	level := m.current.CurrentLevel + m.current.DrainRate*elapsed.Hours()
	m.current = model.NewBatterySnapshot(uuid.New().String(), level, m.current.MorningCharge, m.current.DrainRate, now)
	return m.current
}
