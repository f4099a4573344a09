package entitycore

import "context"

// Store is the shared entity persistence contract.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) (Entity, bool, error)
	Put(ctx context.Context, entity Entity) (bool, error)
	Subscribe(ctx context.Context, key string) (Subscription, error)
}

// Subscription is a live, unbounded stream of snapshots for one key.
// C is closed once Close is called or the subscribing context ends.
type Subscription interface {
	Key() string
	C() <-chan Entity
	Close()
}

// Source fetches the authoritative value for a key from a remote system.
// Failures are reported as *NetworkError, *NotFoundError or *DecodeError.
type Source interface {
	Fetch(ctx context.Context, key string) (Entity, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, key string) (Entity, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, key string) (Entity, error) {
	return f(ctx, key)
}
