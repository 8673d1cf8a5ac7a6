// Package store is the control room's shared state: a tree-structured key-value store with
// get/set/update/remove and path subscriptions. It stands in for the hosted realtime
// database the dashboard talks to. There are no transactions and no optimistic concurrency
// guard; concurrent writers race and the last write wins.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("store: no value at path")
	ErrInvalidPath = errors.New("store: invalid path")
	ErrClosed      = errors.New("store: closed")
)

// Store is implemented by every backend.
type Store interface {
	// Get returns the value at path. A missing value is not an error; Snapshot.Exists is false.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set replaces the whole value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Update patches children of path. Keys may contain '/' to reach deeper nodes and nil
	// values delete.
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
	// Subscribe calls fn with the current value right away and again after every write that
	// touches path. Delivery is synchronous and a stale value is never delivered after a
	// newer one.
	Subscribe(path string, fn func(Snapshot)) (unsubscribe func(), err error)
	Close() error
}

// Snapshot is the JSON value found at a path at a point in time.
type Snapshot struct {
	Path    string          `json:"path"`
	Exists  bool            `json:"exists"`
	Value   json.RawMessage `json:"value,omitempty"`
	Version uint64          `json:"version"`
}

// Decode unmarshals the value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return fmt.Errorf("%w: %s", ErrNotFound, s.Path)
	}
	return json.Unmarshal(s.Value, v)
}

// Children splits an object value into its raw child values. Missing values give an empty map.
func (s Snapshot) Children() (map[string]json.RawMessage, error) {
	children := map[string]json.RawMessage{}
	if !s.Exists {
		return children, nil
	}
	if err := json.Unmarshal(s.Value, &children); err != nil {
		return nil, fmt.Errorf("decode children of %s: %w", s.Path, err)
	}
	return children, nil
}

func newSnapshot(path string, node any, found bool, version uint64) (Snapshot, error) {
	snap := Snapshot{Path: path, Version: version}
	if !found || node == nil {
		return snap, nil
	}
	b, err := json.Marshal(node)
	if err != nil {
		return snap, fmt.Errorf("encode snapshot of %s: %w", path, err)
	}
	snap.Exists = true
	snap.Value = b
	return snap, nil
}
