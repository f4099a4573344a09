package entitycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goforj/entitycache/logger"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFreshWindow is how long a fetched entity is served without a refresh.
	DefaultFreshWindow = time.Minute
	// DefaultFetchTimeout bounds a single Source.Fetch.
	DefaultFetchTimeout = 30 * time.Second
)

// Repository answers reads from a Store and refreshes stale entries from a
// Source in the background. It holds no entity state of its own.
type Repository struct {
	store  Store
	source Source

	freshWindow  time.Duration
	fetchTimeout time.Duration
	clock        clockwork.Clock
	exec         Executor
	ownsExec     bool
	log          logger.Logger
	observer     Observer
	dedupe       bool
	group        singleflight.Group
	inflight     sync.WaitGroup
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithFreshWindow sets how long a refreshed entity stays fresh. Non-positive values are ignored.
func WithFreshWindow(d time.Duration) RepositoryOption {
	return func(r *Repository) {
		if d > 0 {
			r.freshWindow = d
		}
	}
}

// WithFetchTimeout bounds each fetch. Non-positive values are ignored.
func WithFetchTimeout(d time.Duration) RepositoryOption {
	return func(r *Repository) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithClock injects the time source used for staleness and refresh stamps.
func WithClock(clock clockwork.Clock) RepositoryOption {
	return func(r *Repository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithExecutor runs refresh units on exec. The caller keeps ownership:
// Repository.Close waits only for this repository's units and does not close exec.
func WithExecutor(exec Executor) RepositoryOption {
	return func(r *Repository) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger sets the logger for refresh failures.
func WithLogger(log logger.Logger) RepositoryOption {
	return func(r *Repository) {
		if log != nil {
			r.log = log
		}
	}
}

// WithObserver reports every finished refresh unit to o.
func WithObserver(o Observer) RepositoryOption {
	return func(r *Repository) {
		r.observer = o
	}
}

// WithDedupe collapses overlapping refreshes of the same key into one fetch.
func WithDedupe(enabled bool) RepositoryOption {
	return func(r *Repository) {
		r.dedupe = enabled
	}
}

// NewRepository wires a store and a source. Without WithExecutor the
// repository starts its own GoExecutor and stops it on Close.
func NewRepository(store Store, source Source, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:        store,
		source:       source,
		freshWindow:  DefaultFreshWindow,
		fetchTimeout: DefaultFetchTimeout,
		clock:        clockwork.NewRealClock(),
		log:          logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		r.exec = NewGoExecutor(r.log)
		r.ownsExec = true
	}
	return r
}

// FreshWindow reports the configured fresh window.
func (r *Repository) FreshWindow() time.Duration { return r.freshWindow }

// IsStale reports whether a lookup result needs a refresh: absent, never
// fetched, or fetched before now minus the fresh window.
func (r *Repository) IsStale(e Entity, ok bool) bool {
	if !ok {
		return true
	}
	return e.IsStale(r.clock.Now().Add(-r.freshWindow))
}

// GetEntity subscribes to key and schedules a refresh. The subscription
// first carries the cached value, if any, without waiting on the source;
// a successful refresh arrives on it as a later snapshot.
func (r *Repository) GetEntity(ctx context.Context, key string) (Subscription, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	sub, err := r.store.Subscribe(ctx, key)
	if err != nil {
		return nil, err
	}
	r.Refresh(key)
	return sub, nil
}

// Get returns the cached value for key and schedules a refresh without waiting on it.
// Storage errors are returned and no refresh is scheduled.
func (r *Repository) Get(ctx context.Context, key string) (Entity, bool, error) {
	if key == "" {
		return Entity{}, false, ErrEmptyKey
	}
	e, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return Entity{}, false, err
	}
	r.Refresh(key)
	return e, ok, nil
}

// Refresh schedules one refresh unit for key. The returned handle may be ignored.
func (r *Repository) Refresh(key string) *Pending {
	p := newPending()
	if key == "" {
		p.finish(OutcomeFailed, ErrEmptyKey)
		return p
	}
	r.inflight.Add(1)
	err := r.exec.Submit("refresh:"+key, func(ctx context.Context) {
		defer r.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				p.finish(OutcomeFailed, fmt.Errorf("refresh %q panicked: %v", key, rec))
				panic(rec)
			}
		}()
		outcome, err := r.refresh(ctx, key)
		p.finish(outcome, err)
	})
	if err != nil {
		r.inflight.Done()
		r.log.Warn("refresh not scheduled", zap.String("key", key), zap.Error(err))
		p.finish(OutcomeFailed, err)
	}
	return p
}

// Close waits for this repository's in-flight refreshes and stops the
// executor the repository started. A shared executor keeps running.
func (r *Repository) Close() {
	if r.ownsExec {
		r.exec.Close()
		return
	}
	r.inflight.Wait()
}

type refreshResult struct {
	outcome RefreshOutcome
	fetched bool
}

func (r *Repository) refresh(ctx context.Context, key string) (RefreshOutcome, error) {
	start := r.clock.Now()
	var (
		res refreshResult
		err error
	)
	if r.dedupe {
		var v any
		v, err, _ = r.group.Do(key, func() (any, error) {
			res, err := r.refreshOnce(ctx, key)
			return res, err
		})
		res, _ = v.(refreshResult)
	} else {
		res, err = r.refreshOnce(ctx, key)
	}

	if r.observer != nil {
		r.observer.OnRefresh(ctx, RefreshEvent{
			Key:      key,
			Outcome:  res.outcome,
			Fetched:  res.fetched,
			Err:      err,
			Duration: r.clock.Since(start),
			Driver:   r.store.Driver(),
		})
	}
	return res.outcome, err
}

func (r *Repository) refreshOnce(ctx context.Context, key string) (refreshResult, error) {
	current, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Error("refresh read failed", zap.String("key", key), zap.Error(err))
		return refreshResult{outcome: OutcomeFailed}, err
	}
	if !r.IsStale(current, ok) {
		r.log.Debug("entity fresh", zap.String("key", key), zap.Timep("last_refreshed_at", current.LastRefreshedAt))
		return refreshResult{outcome: OutcomeFresh}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	fetched, err := r.source.Fetch(fetchCtx, key)
	cancel()
	if err != nil {
		r.log.Warn("refresh fetch failed", zap.String("key", key), zap.Error(err))
		return refreshResult{outcome: OutcomeFailed, fetched: true}, err
	}

	fetched.Key = key
	fetched = fetched.Stamped(r.clock.Now())
	applied, err := r.store.Put(ctx, fetched)
	if err != nil {
		r.log.Error("refresh write failed", zap.String("key", key), zap.Error(err))
		return refreshResult{outcome: OutcomeFailed, fetched: true}, err
	}
	if !applied {
		r.log.Info("refresh superseded by newer record", zap.String("key", key))
		return refreshResult{outcome: OutcomeRejected, fetched: true}, nil
	}
	r.log.Debug("entity refreshed", zap.String("key", key), zap.Int("fields", len(fetched.Fields)))
	return refreshResult{outcome: OutcomeRefreshed, fetched: true}, nil
}
