package entitycache

import (
	"context"
	"time"
)

// ReadAPI exposes the read path: cached values now, refreshed values later.
type ReadAPI interface {
	GetEntity(ctx context.Context, key string) (Subscription, error)
	Get(ctx context.Context, key string) (Entity, bool, error)
}

// RefreshAPI exposes the refresh policy.
type RefreshAPI interface {
	Refresh(key string) *Pending
	IsStale(e Entity, ok bool) bool
	FreshWindow() time.Duration
}

// RepositoryAPI is the full repository surface.
type RepositoryAPI interface {
	ReadAPI
	RefreshAPI
	Close()
}

var _ RepositoryAPI = (*Repository)(nil)
