package entitycache

import (
	"context"
	"sync"

	"github.com/smallnest/chanx"
)

const subscriptionInitCapacity = 4

// hub fans out written entities to the live subscriptions of each key.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscription]struct{})}
}

func (h *hub) add(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.key]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[sub.key] = set
	}
	set[sub] = struct{}{}
}

func (h *hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.key]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.key)
	}
}

func (h *hub) publish(e Entity) {
	h.mu.Lock()
	targets := make([]*subscription, 0, len(h.subs[e.Key]))
	for sub := range h.subs[e.Key] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.send(e.Clone())
	}
}

func (h *hub) count(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// subscription buffers without bound so a slow reader never stalls a Put.
type subscription struct {
	key    string
	hub    *hub
	ch     *chanx.UnboundedChan[Entity]
	cancel context.CancelFunc
	stop   func() bool

	mu     sync.Mutex
	closed bool
}

func newSubscription(h *hub, key string) *subscription {
	// Cancelling ctx ends the chanx pump and closes Out, dropping whatever the
	// reader never took. Out is unbuffered so nothing is handed over after Close.
	ctx, cancel := context.WithCancel(context.Background())
	return &subscription{
		key:    key,
		hub:    h,
		ch:     chanx.NewUnboundedChanSize[Entity](ctx, 0, 0, subscriptionInitCapacity),
		cancel: cancel,
	}
}

func (s *subscription) Key() string { return s.key }

func (s *subscription) C() <-chan Entity { return s.ch.Out }

// Close stops delivery. Unread snapshots are discarded.
func (s *subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	close(s.ch.In)
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.hub.remove(s)
}

func (s *subscription) send(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch.In <- e
}

// closeOnDone closes the subscription once ctx ends.
func (s *subscription) closeOnDone(ctx context.Context) {
	stop := context.AfterFunc(ctx, s.Close)
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
}
