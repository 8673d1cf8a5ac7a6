package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetRecord decodes the value at path into a T. found is false when nothing is stored.
func GetRecord[T any](ctx context.Context, s Store, path string) (rec T, found bool, err error) {
	snap, err := s.Get(ctx, path)
	if err != nil {
		return rec, false, err
	}
	if !snap.Exists {
		return rec, false, nil
	}
	if err := json.Unmarshal(snap.Value, &rec); err != nil {
		return rec, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, true, nil
}

// ListRecords decodes every child of collection. Children that do not decode are returned
// in skipped by key.
func ListRecords[T any](ctx context.Context, s Store, collection string) (records map[string]T, skipped []string, err error) {
	snap, err := s.Get(ctx, collection)
	if err != nil {
		return nil, nil, err
	}
	children, err := snap.Children()
	if err != nil {
		return nil, nil, err
	}
	records = make(map[string]T, len(children))
	for key, raw := range children {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped = append(skipped, key)
			continue
		}
		records[key] = rec
	}
	return records, skipped, nil
}
