package events

import (
	"context"
	"sync"

	redisrepo "github.com/kirinyoku/tix-bus/internal/repository/redis"
)

// Source delivers trip changes published by any API instance.
type Source interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, msg redisrepo.TripChanged)) error
}

// Hub relays trip changes from Source to local subscribers of that trip.
// A subscriber that does not keep up misses messages instead of blocking
// the others.
type Hub struct {
	src Source

	mu     sync.Mutex
	subs   map[int64]map[chan redisrepo.TripChanged]struct{}
	closed bool
}

func NewHub(src Source) *Hub {
	return &Hub{
		src:  src,
		subs: make(map[int64]map[chan redisrepo.TripChanged]struct{}),
	}
}

// Run blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	return h.src.Subscribe(ctx, func(_ context.Context, msg redisrepo.TripChanged) {
		h.broadcast(msg)
	})
}

// Subscribe registers interest in one trip. The returned func unsubscribes
// and closes the channel. After Close the channel comes back already closed.
func (h *Hub) Subscribe(tripID int64) (<-chan redisrepo.TripChanged, func()) {
	ch := make(chan redisrepo.TripChanged, 16)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set, ok := h.subs[tripID]
	if !ok {
		set = make(map[chan redisrepo.TripChanged]struct{})
		h.subs[tripID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if _, open := set[ch]; !open {
				return
			}
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, tripID)
			}
			close(ch)
		})
	}

	return ch, cancel
}

// Close ends every subscription so long-lived streams finish during
// shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for tripID, set := range h.subs {
		for ch := range set {
			delete(set, ch)
			close(ch)
		}
		delete(h.subs, tripID)
	}
}

func (h *Hub) broadcast(msg redisrepo.TripChanged) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[msg.TripID] {
		select {
		case ch <- msg:
		default:
		}
	}
}
