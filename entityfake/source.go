package entityfake

import (
	"context"
	"sync"

	"github.com/goforj/entitycache"
)

// Source serves canned entities and errors, standing in for a remote API.
// Unknown keys fail with *entitycache.NotFoundError.
type Source struct {
	counter

	mu       sync.Mutex
	entities map[string]entitycache.Entity
	errs     map[string]error
	gate     chan struct{}
	onFetch  func(key string)
}

// NewSource creates an empty Source.
func NewSource() *Source {
	return &Source{
		entities: make(map[string]entitycache.Entity),
		errs:     make(map[string]error),
	}
}

var _ entitycache.Source = (*Source)(nil)

// Set makes key resolve to fields.
func (s *Source) Set(key string, fields map[string]string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[key] = entitycache.Entity{Key: key, Fields: fields}
	delete(s.errs, key)
	return s
}

// Fail makes key fail with err.
func (s *Source) Fail(key string, err error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[key] = err
	return s
}

// Hold blocks every Fetch until the returned release func is called.
func (s *Source) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// OnFetch registers fn to run at the start of each Fetch, after counting.
func (s *Source) OnFetch(fn func(key string)) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFetch = fn
	return s
}

// Fetch implements entitycache.Source.
func (s *Source) Fetch(ctx context.Context, key string) (entitycache.Entity, error) {
	s.record(OpFetch, key)
	s.mu.Lock()
	gate, hook := s.gate, s.onFetch
	s.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return entitycache.Entity{}, &entitycache.NetworkError{Key: key, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[key]; ok {
		return entitycache.Entity{}, err
	}
	e, ok := s.entities[key]
	if !ok {
		return entitycache.Entity{}, &entitycache.NotFoundError{Key: key}
	}
	return e.Clone(), nil
}
