package alerts

import (
	"context"
	"fmt"

	"github.com/ogulcanaydogan/energy-advisor/pkg/energy"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// WatchBattery raises a battery_critical alert whenever a snapshot enters
// the critical band. It returns when ctx is done or events is closed.
func WatchBattery(ctx context.Context, events <-chan energy.Event, d *Dispatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if alert, raise := batteryAlert(ev); raise {
				d.Notify(ctx, alert)
			}
		}
	}
}

func batteryAlert(ev energy.Event) (Alert, bool) {
	switch ev.Kind {
	case energy.EventStateChanged, energy.EventDayStarted:
	default:
		return Alert{}, false
	}
	if ev.Snapshot.State() != model.StateCritical || ev.Previous == model.StateCritical {
		return Alert{}, false
	}

	fields := map[string]string{
		"level":      fmt.Sprintf("%.1f", ev.Snapshot.CurrentLevel),
		"drain_rate": fmt.Sprintf("%.2f%%/h", ev.Snapshot.DrainRate),
	}
	if ev.Previous != "" {
		fields["previous_state"] = string(ev.Previous)
	}
	return Alert{
		Kind:      KindBatteryCritical,
		Level:     AlertCritical,
		Subject:   "battery",
		Message:   fmt.Sprintf("Energy is critically low at %.0f%%", ev.Snapshot.CurrentLevel),
		Fields:    fields,
		Timestamp: ev.Snapshot.LastUpdated,
	}, true
}
