package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// normalize converts a Go value to its generic JSON form so that every backend stores and
// compares the same shapes. Empty objects count as absent.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if m, ok := out.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	return out, nil
}

func lookup(node any, segments []string) (any, bool) {
	for _, seg := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// assign writes value below root, creating intermediate objects. Scalars in the way are
// replaced. A nil value removes the node and prunes parents left empty.
func assign(root map[string]any, segments []string, value any) {
	if value == nil {
		prune(root, segments)
		return
	}
	m := root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := m[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[seg] = child
		}
		m = child
	}
	m[segments[len(segments)-1]] = value
}

func prune(root map[string]any, segments []string) {
	parents := make([]map[string]any, 0, len(segments))
	m := root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := m[seg].(map[string]any)
		if !ok {
			return
		}
		parents = append(parents, m)
		m = child
	}
	delete(m, segments[len(segments)-1])
	for i := len(parents) - 1; i >= 0 && len(m) == 0; i-- {
		delete(parents[i], segments[i])
		m = parents[i]
	}
}

// patch is one normalized write produced by Set, Update or Remove.
type patch struct {
	segments []string
	value    any
}

func setPatch(path string, value any) ([]patch, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	v, err := normalize(value)
	if err != nil {
		return nil, err
	}
	return []patch{{segments: segments, value: v}}, nil
}

func updatePatches(path string, fields map[string]any) ([]patch, error) {
	base, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	patches := make([]patch, 0, len(fields))
	for key, value := range fields {
		rel, err := SplitPath(key)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", path, err)
		}
		v, err := normalize(value)
		if err != nil {
			return nil, fmt.Errorf("update %s/%s: %w", path, strings.Trim(key, "/"), err)
		}
		segments := make([]string, 0, len(base)+len(rel))
		segments = append(segments, base...)
		segments = append(segments, rel...)
		patches = append(patches, patch{segments: segments, value: v})
	}
	return patches, nil
}
