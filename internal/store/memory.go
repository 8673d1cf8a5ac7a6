package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the whole tree in process memory. It backs tests and single-process
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	root    map[string]any
	version uint64
	closed  bool
	hub     *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{root: map[string]any{}, hub: newHub()}
}

func (s *MemoryStore) Get(_ context.Context, path string) (Snapshot, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	node, found := lookup(s.root, segments)
	return newSnapshot(path, node, found, s.version)
}

func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	patches, err := setPatch(path, value)
	if err != nil {
		return err
	}
	return s.apply(patches)
}

func (s *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	patches, err := updatePatches(path, fields)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return nil
	}
	return s.apply(patches)
}

func (s *MemoryStore) Remove(_ context.Context, path string) error {
	patches, err := setPatch(path, nil)
	if err != nil {
		return err
	}
	return s.apply(patches)
}

func (s *MemoryStore) apply(patches []patch) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	changed := make([][]string, 0, len(patches))
	for _, p := range patches {
		assign(s.root, p.segments, p.value)
		changed = append(changed, p.segments)
	}
	s.version++
	deliveries, err := s.collect(s.hub.affected(changed))
	s.mu.Unlock()

	deliverAll(deliveries)
	return err
}

// collect snapshots the current value for each subscription. Callers hold s.mu.
func (s *MemoryStore) collect(subs []*subscription) ([]delivery, error) {
	deliveries := make([]delivery, 0, len(subs))
	for _, sub := range subs {
		node, found := lookup(s.root, sub.segments)
		snap, err := newSnapshot(sub.path, node, found, s.version)
		if err != nil {
			return deliveries, err
		}
		deliveries = append(deliveries, delivery{sub: sub, snap: snap})
	}
	return deliveries, nil
}

func (s *MemoryStore) Subscribe(path string, fn func(Snapshot)) (func(), error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	sub, unsubscribe := s.hub.add(path, segments, fn)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		unsubscribe()
		return nil, ErrClosed
	}
	node, found := lookup(s.root, segments)
	snap, err := newSnapshot(path, node, found, s.version)
	s.mu.RUnlock()
	if err != nil {
		unsubscribe()
		return nil, err
	}
	sub.deliver(snap)
	return unsubscribe, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
