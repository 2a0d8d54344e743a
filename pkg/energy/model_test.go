package energy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ogulcanaydogan/energy-advisor/pkg/energy"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/signals"
)

func fptr(v float64) *float64 { return &v }

var morning = time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)

func goodNight() *signals.SleepSummary {
	return &signals.SleepSummary{
		Duration:   8 * time.Hour,
		DeepSleep:  2 * time.Hour,
		Efficiency: fptr(0.9),
	}
}

func TestComputeMorningCharge_GoodNightIsHigh(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())

	level := m.ComputeMorningCharge(goodNight(), &signals.HRVReading{Current: 60, Baseline: 60}, nil)
	assert.InDelta(t, 90.5, level, 0.01)
	assert.Equal(t, model.StateHigh, model.StateFor(level))
}

func TestComputeMorningCharge_MissingInputsAreNeutral(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	assert.InDelta(t, 50.0, m.ComputeMorningCharge(nil, nil, nil), 1e-9)
}

func TestComputeMorningCharge_CriticalPreviousDayPenalty(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	hrv := &signals.HRVReading{Current: 60, Baseline: 60}

	rested := m.ComputeMorningCharge(goodNight(), hrv, fptr(55))
	depleted := m.ComputeMorningCharge(goodNight(), hrv, fptr(10))

	assert.InDelta(t, rested, 90.5, 0.01)
	assert.InDelta(t, rested*0.85, depleted, 0.01)
	assert.Less(t, depleted, rested)
}

func TestComputeDrainRate(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())

	idle := m.ComputeDrainRate(0, 0, 0, energy.ModeStandard)
	assert.InDelta(t, -2.0, idle, 1e-9)

	busy := m.ComputeDrainRate(200, 0.5, 0.5, energy.ModeStandard)
	// baseline 2 + activity 1.5*2 + stress 3*0.5 + env 2*0.5
	assert.InDelta(t, -7.5, busy, 1e-9)

	athlete := m.ComputeDrainRate(200, 0.5, 0.5, energy.ModeAthlete)
	assert.Greater(t, athlete, busy, "athlete mode discounts activity drain")

	unknown := m.ComputeDrainRate(200, 0.5, 0.5, "couch")
	assert.InDelta(t, busy, unknown, 1e-9)
}

func TestComputeDrainRate_ClampsInputs(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	assert.InDelta(t, -2.0, m.ComputeDrainRate(-50, -1, -3, energy.ModeStandard), 1e-9)
	assert.InDelta(t, -7.0, m.ComputeDrainRate(0, 5, 9, energy.ModeStandard), 1e-9)
}

func TestComputeDrainRate_CustomModeScaling(t *testing.T) {
	cfg := energy.DefaultConfig()
	cfg.Modes = map[energy.Mode]energy.Scaling{"desk": {Activity: 0, Stress: 2, Environment: 0}}
	m := energy.NewModel(cfg)

	assert.InDelta(t, -8.0, m.ComputeDrainRate(500, 1, 1, "desk"), 1e-9)
	// defaults survive alongside custom modes
	assert.Contains(t, m.Config().Modes, energy.ModeAthlete)
}

func TestTick_FourHoursAtFivePercent(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	start := m.StartDay(morning, goodNight(), &signals.HRVReading{Current: 60, Baseline: 60})
	require.Equal(t, model.StateHigh, start.State())

	m.SetDrainRate(morning, -5)
	snap := m.Tick(morning.Add(4 * time.Hour))

	assert.InDelta(t, start.CurrentLevel-20, snap.CurrentLevel, 1e-6)
	assert.Equal(t, start.MorningCharge, snap.MorningCharge)
	assert.Equal(t, morning.Add(4*time.Hour), snap.LastUpdated)
}

func TestTick_Idempotent(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	m.StartDay(morning, nil, nil)

	at := morning.Add(90 * time.Minute)
	first := m.Tick(at)
	second := m.Tick(at)
	assert.Equal(t, first, second)

	earlier := m.Tick(morning)
	assert.Equal(t, first, earlier, "ticking backwards leaves the snapshot alone")
}

func TestTick_AlwaysWithinBounds(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	m.StartDay(morning, goodNight(), nil)

	now := morning
	rates := []float64{-40, 25, -3, 90, -200, 0, 15}
	for i := 0; i < 50; i++ {
		m.SetDrainRate(now, rates[i%len(rates)])
		now = now.Add(time.Duration(i%5+1) * 37 * time.Minute)
		snap := m.Tick(now)
		require.GreaterOrEqual(t, snap.CurrentLevel, 0.0)
		require.LessOrEqual(t, snap.CurrentLevel, 100.0)
		require.Equal(t, model.StateFor(snap.CurrentLevel), snap.State())
	}
}

func TestTick_BeforeStartUsesNeutralCharge(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	_, ok := m.Current()
	assert.False(t, ok)

	snap := m.Tick(morning)
	assert.InDelta(t, 50.0, snap.CurrentLevel, 1e-9)

	current, ok := m.Current()
	assert.True(t, ok)
	assert.Equal(t, snap, current)
}

func TestStartDay_UsesPreviousDayEnd(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	m.StartDay(morning, nil, nil) // 50
	m.SetDrainRate(morning, -5)

	// 8 hours later the level is 10, critical
	nextDay := m.StartDay(morning.Add(8*time.Hour), goodNight(), &signals.HRVReading{Current: 60, Baseline: 60})
	assert.InDelta(t, 90.5*0.85, nextDay.CurrentLevel, 0.01)
	assert.InDelta(t, -5.0, nextDay.DrainRate, 1e-9, "drain rate carries over until recomputed")
}

func TestStartDay_OvernightDrainIsNotPenalized(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	hrv := &signals.HRVReading{Current: 60, Baseline: 60}

	// low at 22:00; drained to midnight it is 31, still low. Drained on to
	// 07:00 it would be 17, critical.
	evening := time.Date(2026, 5, 4, 22, 0, 0, 0, time.UTC)
	m.Restore(model.NewBatterySnapshot("evening", 35, 80, -2, evening))

	next := m.StartDay(evening.Add(9*time.Hour), goodNight(), hrv)
	assert.InDelta(t, 90.5, next.MorningCharge, 0.01)
}

func TestStartDay_CriticalBeforeBoundaryIsPenalized(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	hrv := &signals.HRVReading{Current: 60, Baseline: 60}

	// 22 at 20:00 drains to 14 by midnight
	evening := time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)
	m.Restore(model.NewBatterySnapshot("evening", 22, 80, -2, evening))

	next := m.StartDay(evening.Add(11*time.Hour), goodNight(), hrv)
	assert.InDelta(t, 90.5*0.85, next.MorningCharge, 0.01)
}

func TestDayBounds_DayStartOffset(t *testing.T) {
	ist, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	cfg := energy.DefaultConfig()
	cfg.Location = ist
	cfg.DayStart = 4 * time.Hour
	m := energy.NewModel(cfg)

	lateNight := time.Date(2026, 5, 5, 1, 30, 0, 0, ist)
	start, end := m.DayBounds(lateNight)
	assert.Equal(t, time.Date(2026, 5, 4, 4, 0, 0, 0, ist), start)
	assert.Equal(t, time.Date(2026, 5, 5, 4, 0, 0, 0, ist), end)

	evening := time.Date(2026, 5, 4, 21, 0, 0, 0, ist)
	assert.True(t, m.SameDay(evening, lateNight))
	assert.False(t, m.SameDay(evening, time.Date(2026, 5, 5, 4, 0, 0, 0, ist)))
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	events, cancel := m.Subscribe(8)
	defer cancel()

	m.StartDay(morning, nil, nil)
	m.SetDrainRate(morning, -10)
	m.Tick(morning.Add(2 * time.Hour)) // 50 -> 30: medium -> low

	var kinds []energy.EventKind
	for len(kinds) < 4 {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", kinds)
		}
	}
	assert.Equal(t, []energy.EventKind{
		energy.EventDayStarted,
		energy.EventDrainChanged,
		energy.EventTicked,
		energy.EventStateChanged,
	}, kinds)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	events, cancel := m.Subscribe(1)
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)

	// publishing after unsubscribe must not panic
	m.Tick(morning)
}

func TestRestore(t *testing.T) {
	m := energy.NewModel(energy.DefaultConfig())
	m.Restore(model.NewBatterySnapshot("prev", 42, 80, -3, morning))

	snap, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "prev", snap.ID)

	later := m.Tick(morning.Add(time.Hour))
	assert.InDelta(t, 39.0, later.CurrentLevel, 1e-9)
}
