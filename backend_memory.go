package entitycache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// memoryBackend keeps records in process. Records never expire: staleness is
// decided by the repository from the refresh stamp, not by the backend.
type memoryBackend struct {
	cache *gocache.Cache
}

func newMemoryBackend() Backend {
	return &memoryBackend{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (b *memoryBackend) Driver() Driver { return DriverMemory }

func (b *memoryBackend) Read(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := b.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (b *memoryBackend) Write(_ context.Context, key string, body []byte) error {
	b.cache.Set(key, cloneBytes(body), gocache.NoExpiration)
	return nil
}
