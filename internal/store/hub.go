package store

import (
	"sync"
)

type subscription struct {
	path      string
	segments  []string
	fn        func(Snapshot)
	mu        sync.Mutex
	delivered uint64
}

// deliver hands snap to the subscriber unless a newer version already went out. Callbacks
// for one subscription never overlap, so they must not write to the path they watch.
func (s *subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Version != 0 && snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version
	s.fn(snap)
}

// hub keeps the subscriber registry shared by the store implementations.
type hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*subscription
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]*subscription)}
}

func (h *hub) add(path string, segments []string, fn func(Snapshot)) (*subscription, func()) {
	sub := &subscription{path: path, segments: segments, fn: fn}
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// affected returns the subscriptions whose value may have changed after writes to the
// given paths.
func (h *hub) affected(changed [][]string) []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*subscription
	for _, sub := range h.subs {
		for _, segments := range changed {
			if overlaps(sub.segments, segments) {
				out = append(out, sub)
				break
			}
		}
	}
	return out
}

func (h *hub) inCollection(collection string) []*subscription {
	return h.affected([][]string{{collection}})
}

type delivery struct {
	sub  *subscription
	snap Snapshot
}

func deliverAll(deliveries []delivery) {
	for _, d := range deliveries {
		d.sub.deliver(d.snap)
	}
}
