// Package entityfake provides in-memory Source and Store fakes with call
// counting for tests of code built on entitycache.
package entityfake

import (
	"context"
	"sync"
	"testing"

	"github.com/goforj/entitycache"
)

// Op identifies a fake operation for assertions.
type Op string

const (
	OpGet       Op = "get"
	OpPut       Op = "put"
	OpSubscribe Op = "subscribe"
	OpFetch     Op = "fetch"
)

// counter records calls per op and key.
type counter struct {
	mu     sync.Mutex
	counts map[Op]map[string]int
}

func (c *counter) record(op Op, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[Op]map[string]int)
	}
	if c.counts[op] == nil {
		c.counts[op] = make(map[string]int)
	}
	c.counts[op][key]++
}

// Count returns calls for op+key.
func (c *counter) Count(op Op, key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[op][key]
}

// Total returns total calls for an op across keys.
func (c *counter) Total(op Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum int
	for _, v := range c.counts[op] {
		sum += v
	}
	return sum
}

// Reset clears recorded counts.
func (c *counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = nil
}

// AssertCalled verifies key was touched by op the expected number of times.
func (c *counter) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := c.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (c *counter) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := c.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (c *counter) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := c.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Store wraps an in-memory entity store and counts calls.
type Store struct {
	counter
	inner entitycache.Store
}

// NewStore creates a counting Store over a fresh memory store.
func NewStore() *Store {
	return &Store{inner: entitycache.NewMemoryStore(context.Background())}
}

// Wrap counts calls made to inner.
func Wrap(inner entitycache.Store) *Store {
	return &Store{inner: inner}
}

var _ entitycache.Store = (*Store)(nil)

func (s *Store) Driver() entitycache.Driver { return s.inner.Driver() }

func (s *Store) Get(ctx context.Context, key string) (entitycache.Entity, bool, error) {
	s.record(OpGet, key)
	return s.inner.Get(ctx, key)
}

func (s *Store) Put(ctx context.Context, e entitycache.Entity) (bool, error) {
	s.record(OpPut, e.Key)
	return s.inner.Put(ctx, e)
}

func (s *Store) Subscribe(ctx context.Context, key string) (entitycache.Subscription, error) {
	s.record(OpSubscribe, key)
	return s.inner.Subscribe(ctx, key)
}
