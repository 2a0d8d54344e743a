package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/alerts"
	"github.com/ogulcanaydogan/energy-advisor/pkg/metrics"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

// CircuitObserver returns a guard state-change hook that updates the
// circuit gauge and alerts when a circuit opens or recovers. Either
// argument may be nil.
func CircuitObserver(d *alerts.Dispatcher, m *metrics.Metrics) func(endpoint string, from, to reliability.CircuitState) {
	return func(endpoint string, from, to reliability.CircuitState) {
		m.SetCircuit(endpoint, to.String())

		var a alerts.Alert
		switch {
		case to == reliability.CircuitOpen:
			a = alerts.Alert{
				Kind:    alerts.KindCircuitOpened,
				Level:   alerts.AlertCritical,
				Message: fmt.Sprintf("Remote analysis circuit for %s opened; serving local analyses", endpoint),
			}
		case to == reliability.CircuitClosed && from != reliability.CircuitClosed:
			a = alerts.Alert{
				Kind:    alerts.KindCircuitClosed,
				Level:   alerts.AlertInfo,
				Message: fmt.Sprintf("Remote analysis circuit for %s recovered", endpoint),
			}
		default:
			return
		}
		a.Subject = endpoint
		a.Fields = map[string]string{"from": from.String(), "to": to.String()}
		a.Timestamp = time.Now().UTC()
		d.NotifyAsync(context.Background(), a)
	}
}
