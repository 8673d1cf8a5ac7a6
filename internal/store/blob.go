package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"controlroom.busops.org/internal/logging"
)

// Backend persists one JSON document per top-level collection.
type Backend interface {
	Load(ctx context.Context, collection string) ([]byte, bool, error)
	Save(ctx context.Context, collection string, body []byte) error
	Delete(ctx context.Context, collection string) error
	Close() error
}

// Notifier is implemented by backends that other processes write to. Watch subscribes
// before it returns and then calls fn with the name of each collection changed elsewhere
// until stop is called.
type Notifier interface {
	Watch(ctx context.Context, fn func(collection string)) (stop func(), err error)
}

// CollectionInfo describes a stored collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Revision  int64  `json:"revision"`
	Size      int    `json:"size"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Lister is implemented by backends that can enumerate their collections.
type Lister interface {
	Collections(ctx context.Context) ([]CollectionInfo, error)
}

// BlobStore maps the tree onto a Backend. Every write loads, patches and saves the
// whole collection it touches.
type BlobStore struct {
	backend Backend
	logger  *slog.Logger
	hub     *hub
	mu      sync.Mutex
	version atomic.Uint64
	stop    func()
	closed  atomic.Bool
}

func NewBlobStore(ctx context.Context, backend Backend, logger *slog.Logger) (*BlobStore, error) {
	s := &BlobStore{
		backend: backend,
		logger:  logging.Component(logger, "store"),
		hub:     newHub(),
	}
	if n, ok := backend.(Notifier); ok {
		stop, err := n.Watch(ctx, s.refresh)
		if err != nil {
			return nil, fmt.Errorf("watch backend: %w", err)
		}
		s.stop = stop
	}
	return s, nil
}

func (s *BlobStore) load(ctx context.Context, collection string) (any, error) {
	body, found, err := s.backend.Load(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	if !found || len(body) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return value, nil
}

func (s *BlobStore) Get(ctx context.Context, path string) (Snapshot, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	if s.closed.Load() {
		return Snapshot{}, ErrClosed
	}
	value, err := s.load(ctx, segments[0])
	if err != nil {
		return Snapshot{}, err
	}
	node, found := lookup(map[string]any{segments[0]: value}, segments)
	return newSnapshot(path, node, found, s.version.Load())
}

func (s *BlobStore) Set(ctx context.Context, path string, value any) error {
	patches, err := setPatch(path, value)
	if err != nil {
		return err
	}
	return s.apply(ctx, patches)
}

func (s *BlobStore) Update(ctx context.Context, path string, fields map[string]any) error {
	patches, err := updatePatches(path, fields)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return nil
	}
	return s.apply(ctx, patches)
}

func (s *BlobStore) Remove(ctx context.Context, path string) error {
	patches, err := setPatch(path, nil)
	if err != nil {
		return err
	}
	return s.apply(ctx, patches)
}

// apply patches a single collection. Update keys always share the base path's collection.
func (s *BlobStore) apply(ctx context.Context, patches []patch) error {
	if s.closed.Load() {
		return ErrClosed
	}
	collection := patches[0].segments[0]

	s.mu.Lock()
	value, err := s.load(ctx, collection)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	root := map[string]any{}
	if value != nil {
		root[collection] = value
	}
	changed := make([][]string, 0, len(patches))
	for _, p := range patches {
		assign(root, p.segments, p.value)
		changed = append(changed, p.segments)
	}

	if next, ok := root[collection]; ok {
		body, err := json.Marshal(next)
		if err == nil {
			err = s.backend.Save(ctx, collection, body)
		}
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("save %s: %w", collection, err)
		}
	} else if err := s.backend.Delete(ctx, collection); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", collection, err)
	}

	version := s.version.Add(1)
	deliveries, err := collectFrom(root, s.hub.affected(changed), version)
	s.mu.Unlock()

	deliverAll(deliveries)
	return err
}

func collectFrom(root map[string]any, subs []*subscription, version uint64) ([]delivery, error) {
	deliveries := make([]delivery, 0, len(subs))
	for _, sub := range subs {
		node, found := lookup(root, sub.segments)
		snap, err := newSnapshot(sub.path, node, found, version)
		if err != nil {
			return deliveries, err
		}
		deliveries = append(deliveries, delivery{sub: sub, snap: snap})
	}
	return deliveries, nil
}

// refresh re-reads a collection another process changed and notifies its subscribers.
func (s *BlobStore) refresh(collection string) {
	if s.closed.Load() {
		return
	}
	subs := s.hub.inCollection(collection)
	if len(subs) == 0 {
		return
	}
	s.mu.Lock()
	value, err := s.load(context.Background(), collection)
	if err != nil {
		s.mu.Unlock()
		logging.LogError(s.logger, "refresh failed", err, slog.String("collection", collection))
		return
	}
	version := s.version.Add(1)
	deliveries, err := collectFrom(map[string]any{collection: value}, subs, version)
	s.mu.Unlock()
	if err != nil {
		logging.LogError(s.logger, "refresh failed", err, slog.String("collection", collection))
	}
	deliverAll(deliveries)
}

func (s *BlobStore) Subscribe(path string, fn func(Snapshot)) (func(), error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	sub, unsubscribe := s.hub.add(path, segments, fn)

	s.mu.Lock()
	value, err := s.load(context.Background(), segments[0])
	version := s.version.Load()
	s.mu.Unlock()
	if err != nil {
		unsubscribe()
		return nil, err
	}
	node, found := lookup(map[string]any{segments[0]: value}, segments)
	snap, err := newSnapshot(path, node, found, version)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	sub.deliver(snap)
	return unsubscribe, nil
}

// Collections lists stored collections when the backend supports it.
func (s *BlobStore) Collections(ctx context.Context) ([]CollectionInfo, error) {
	l, ok := s.backend.(Lister)
	if !ok {
		return nil, fmt.Errorf("store: backend %T cannot list collections", s.backend)
	}
	return l.Collections(ctx)
}

func (s *BlobStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.stop != nil {
		s.stop()
	}
	return s.backend.Close()
}
