package entitycache

import (
	"context"
	"io"
	"sync"
)

// EntityStore implements Store over a byte-level Backend. Puts for one key
// are serialized; different keys never contend.
type EntityStore struct {
	backend    Backend
	codec      recordCodec
	hub        *hub
	locks      keyLocks
	outOfOrder bool
}

var _ Store = (*EntityStore)(nil)

func newEntityStore(backend Backend, cfg StoreConfig) (*EntityStore, error) {
	codec, err := newRecordCodec(cfg)
	if err != nil {
		return nil, err
	}
	return &EntityStore{
		backend:    backend,
		codec:      codec,
		hub:        newHub(),
		locks:      keyLocks{m: make(map[string]*keyLock)},
		outOfOrder: cfg.AllowOutOfOrderWrites,
	}, nil
}

// Driver reports the backend driver.
func (s *EntityStore) Driver() Driver { return s.backend.Driver() }

// Backend returns the underlying byte store.
func (s *EntityStore) Backend() Backend { return s.backend }

// Get returns the stored entity for key. A missing record is ok=false, not an error.
func (s *EntityStore) Get(ctx context.Context, key string) (Entity, bool, error) {
	if key == "" {
		return Entity{}, false, ErrEmptyKey
	}
	return s.read(ctx, key)
}

// Put replaces the record for e.Key. It reports applied=false when e carries
// a refresh stamp older than the stored one and out-of-order writes are not allowed.
func (s *EntityStore) Put(ctx context.Context, e Entity) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	unlock := s.locks.lock(e.Key)
	defer unlock()

	if !s.outOfOrder && e.LastRefreshedAt != nil {
		current, ok, err := s.read(ctx, e.Key)
		if err != nil {
			return false, err
		}
		if ok && current.NewerThan(e) {
			return false, nil
		}
	}

	e = e.Clone()
	body, err := s.codec.encode(e)
	if err != nil {
		return false, storageError("encode", e.Key, s.Driver(), err)
	}
	if err := s.backend.Write(ctx, e.Key, body); err != nil {
		return false, storageError("put", e.Key, s.Driver(), err)
	}
	s.hub.publish(e)
	return true, nil
}

// Subscribe emits the current value for key, if any, then every applied Put.
// The subscription ends when ctx is done or Close is called.
func (s *EntityStore) Subscribe(ctx context.Context, key string) (Subscription, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	// Holding the key lock keeps a concurrent Put from landing between the
	// initial read and registration.
	unlock := s.locks.lock(key)
	defer unlock()

	current, ok, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(s.hub, key)
	s.hub.add(sub)
	if ok {
		sub.send(current)
	}
	sub.closeOnDone(ctx)
	return sub, nil
}

// Subscribers reports the number of live subscriptions for key.
func (s *EntityStore) Subscribers(key string) int { return s.hub.count(key) }

// Close releases backend resources such as SQL connection pools.
func (s *EntityStore) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *EntityStore) read(ctx context.Context, key string) (Entity, bool, error) {
	body, ok, err := s.backend.Read(ctx, key)
	if err != nil {
		return Entity{}, false, storageError("get", key, s.Driver(), err)
	}
	if !ok {
		return Entity{}, false, nil
	}
	e, err := s.codec.decode(key, body)
	if err != nil {
		return Entity{}, false, storageError("decode", key, s.Driver(), err)
	}
	return e, true, nil
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyLocks hands out one mutex per key and forgets it once no caller holds it.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

func (l *keyLocks) lock(key string) func() {
	l.mu.Lock()
	kl, ok := l.m[key]
	if !ok {
		kl = &keyLock{}
		l.m[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
