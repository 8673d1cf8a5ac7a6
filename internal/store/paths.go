package store

import (
	"strings"
)

// Collections written and read by the control room.
const (
	LiveTelemetry    = "live-telemetry"
	Emergencies      = "emergencies"
	Drivers          = "drivers"
	Vehicles         = "vehicles"
	Passes           = "passes"
	Payments         = "payments"
	PaymentDisputes  = "payment-disputes"
	Insights         = "ai_insights"
	Messages         = "messages"
	LocationRequests = "location-requests"
)

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitPath validates a path and returns its segments. Paths need at least one segment and
// segments may not be empty or contain any of . # $ [ ].
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if seg == "" || strings.ContainsAny(seg, ".#$[]") {
			return nil, &PathError{Path: path, Segment: seg}
		}
	}
	return segments, nil
}

// PathError reports the offending segment of an invalid path.
type PathError struct {
	Path    string
	Segment string
}

func (e *PathError) Error() string {
	return "store: invalid path " + e.Path + " (segment " + `"` + e.Segment + `"` + ")"
}

func (e *PathError) Unwrap() error {
	return ErrInvalidPath
}

// overlaps reports whether a write at one path can change the value seen at the other,
// that is one is an ancestor of (or equal to) the other.
func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
