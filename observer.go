package entitycache

import (
	"context"
	"time"
)

// RefreshOutcome describes how a refresh unit ended.
type RefreshOutcome int

const (
	// OutcomePending means the unit has not finished yet.
	OutcomePending RefreshOutcome = iota
	// OutcomeFresh means the stored record was within the fresh window; nothing was fetched.
	OutcomeFresh
	// OutcomeRefreshed means a fetched entity was written to the store.
	OutcomeRefreshed
	// OutcomeFailed means the store read, the fetch, or the write failed. The store is unchanged.
	OutcomeFailed
	// OutcomeRejected means the store refused the fetched entity because a newer one was already stored.
	OutcomeRejected
)

func (o RefreshOutcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeFailed:
		return "failed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// RefreshEvent is reported to an Observer after each refresh unit.
type RefreshEvent struct {
	Key      string
	Outcome  RefreshOutcome
	Fetched  bool
	Err      error
	Duration time.Duration
	Driver   Driver
}

// Observer receives an event for every finished refresh unit.
// It is called on the executor goroutine that ran the unit.
type Observer interface {
	OnRefresh(ctx context.Context, ev RefreshEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev RefreshEvent)

// OnRefresh implements Observer.
func (f ObserverFunc) OnRefresh(ctx context.Context, ev RefreshEvent) {
	if f == nil {
		return
	}
	f(ctx, ev)
}
