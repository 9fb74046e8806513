package engine

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// flight is an entry being computed. Other requests for the same entry wait
// on done and then read the outcome.
type flight struct {
	owner *frame
	done  chan struct{}

	val  cty.Value
	inst *Instance
	err  error
}

func newFlight(owner *frame) *flight {
	return &flight{owner: owner, done: make(chan struct{})}
}

// await blocks caller until f completes. It fails instead of blocking when
// the entry is on caller's own stack, or when the chain computing it is
// itself waiting on caller's chain.
func (m *Model) await(ctx context.Context, caller *frame, id string, f *flight) error {
	owner := f.owner.chain
	waiter := chainOf(caller)

	if waiter == owner {
		if caller.onStack(id) {
			m.metrics.Cycle()
			return &CircularReferenceError{Chain: caller.cycle(id)}
		}
		// Another goroutine of the same chain is computing it.
	} else if waiter != nil {
		if !m.tracker.wait(waiter, owner) {
			m.metrics.Cycle()
			return &CircularReferenceError{Chain: append(caller.stack(), id)}
		}
		defer m.tracker.release(waiter, owner)
	}

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
