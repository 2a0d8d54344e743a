package budget

import (
	"context"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// Reservation holds estimated spend against a user's cap while a remote
// call is in flight. Exactly one of Commit or Release should be called;
// later calls are no-ops.
type Reservation struct {
	gate      *Gate
	userID    string
	estimated float64
	done      bool
}

// Reserve checks the cap and, if admitted, holds the estimate so concurrent
// calls for the same user cannot jointly overspend. The reservation is nil
// when the decision is a rejection.
func (g *Gate) Reserve(ctx context.Context, userID string, estimated float64) (*Reservation, Decision, error) {
	defer g.lock(userID)()

	d, err := g.check(ctx, userID, estimated)
	if err != nil || !d.Allowed {
		return nil, d, err
	}
	*g.pendingFor(userID) += estimated
	return &Reservation{gate: g, userID: userID, estimated: estimated}, d, nil
}

// Commit releases the hold and records actual spend.
func (r *Reservation) Commit(ctx context.Context, actual float64) (model.BudgetLedger, error) {
	if r == nil {
		return model.BudgetLedger{}, nil
	}
	defer r.gate.lock(r.userID)()
	if r.done {
		return model.BudgetLedger{}, nil
	}
	r.done = true
	*r.gate.pendingFor(r.userID) -= r.estimated
	return r.gate.record(ctx, r.userID, actual)
}

// Release drops the hold without spending.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	defer r.gate.lock(r.userID)()
	if r.done {
		return
	}
	r.done = true
	*r.gate.pendingFor(r.userID) -= r.estimated
}
