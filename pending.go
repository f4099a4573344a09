package entitycache

import (
	"context"
	"sync"
)

// Pending tracks one scheduled refresh unit.
type Pending struct {
	done    chan struct{}
	once    sync.Once
	outcome RefreshOutcome
	err     error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(outcome RefreshOutcome, err error) {
	p.once.Do(func() {
		p.outcome = outcome
		p.err = err
		close(p.done)
	})
}

// Done is closed when the unit has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result reports the outcome, or OutcomePending while the unit is still running.
func (p *Pending) Result() (RefreshOutcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	default:
		return OutcomePending, nil
	}
}

// Wait blocks until the unit finishes or ctx ends. Giving up does not stop the unit.
func (p *Pending) Wait(ctx context.Context) (RefreshOutcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}
