// Package live turns the raw live-telemetry collection into the vehicle list the map and API
// work from.
package live

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"controlroom.busops.org/internal/telemetry"
)

var ErrMalformedRecord = errors.New("malformed telemetry record")

// Vehicle is a telemetry record with the derived UI flags. Raw fields keep their store
// names; derived ones are camelCase.
type Vehicle struct {
	telemetry.Vehicle
	Stale          bool `json:"isStale"`
	Active         bool `json:"isActive"`
	HasEmergency   bool `json:"hasEmergency"`
	SeatsAvailable int  `json:"seatsAvailable"`
}

// Record is a decoded store record plus which optional fields were actually present.
type Record struct {
	telemetry.Vehicle
	HasActiveFlag bool
	HasLastUpdate bool
}

// number accepts a JSON number, a numeric string or null.
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		n.value, n.set = v, true
		return nil
	}
	if err := json.Unmarshal(b, &n.value); err != nil {
		return err
	}
	n.set = true
	return nil
}

// timestamp accepts unix milliseconds (seconds when the value is too small to be
// milliseconds), a numeric string or an RFC 3339 string.
type timestamp struct {
	value time.Time
	set   bool
}

// Anything below this is taken to be unix seconds (it is March 1973 in milliseconds).
const millisThreshold = 1e11

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var n number
	if err := n.UnmarshalJSON(b); err == nil {
		if n.set {
			t.value, t.set = fromEpoch(n.value), true
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return err
	}
	t.value, t.set = parsed, true
	return nil
}

func fromEpoch(v float64) time.Time {
	if math.Abs(v) < millisThreshold {
		return time.UnixMilli(int64(v * 1000))
	}
	return time.UnixMilli(int64(v))
}

// flag accepts booleans and the strings "true"/"false".
type flag struct {
	value bool
	set   bool
}

func (f *flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "null":
		return nil
	case "true", `"true"`:
		f.value, f.set = true, true
	case "false", `"false"`:
		f.value, f.set = false, true
	default:
		return fmt.Errorf("not a boolean: %s", b)
	}
	return nil
}

type rawRecord struct {
	ID                    string    `json:"id"`
	RouteID               string    `json:"route_id"`
	RouteName             string    `json:"route_name"`
	Depot                 string    `json:"depot"`
	Latitude              number    `json:"latitude"`
	Longitude             number    `json:"longitude"`
	Heading               number    `json:"heading"`
	Speed                 number    `json:"speed"`
	Progress              number    `json:"progress"`
	OccupancyPercent      number    `json:"occupancy_percent"`
	Passengers            number    `json:"passengers"`
	Capacity              number    `json:"capacity"`
	PredictedDelaySeconds number    `json:"predicted_delay_seconds"`
	IsActive              flag      `json:"is_active"`
	LastUpdate            timestamp `json:"last_update"`
	Emergency             flag      `json:"emergency"`
	DriverID              string    `json:"driver_id"`
	DriverName            string    `json:"driver_name"`
	ConductorID           string    `json:"conductor_id"`
	ConductorName         string    `json:"conductor_name"`
}

// Decode reads one record stored under live-telemetry/{id}; the path id wins over an id
// field in the body. Missing optional fields are
// defaulted. A record that is not an object, or has no usable position, is rejected with
// ErrMalformedRecord.
func Decode(id string, raw json.RawMessage) (Record, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("%w %s: %v", ErrMalformedRecord, id, err)
	}
	if !r.Latitude.set || !r.Longitude.set {
		return Record{}, fmt.Errorf("%w %s: missing position", ErrMalformedRecord, id)
	}
	if math.Abs(r.Latitude.value) > 90 || math.Abs(r.Longitude.value) > 180 {
		return Record{}, fmt.Errorf("%w %s: position out of range", ErrMalformedRecord, id)
	}

	v := telemetry.Vehicle{
		ID:                    id,
		RouteID:               r.RouteID,
		RouteName:             r.RouteName,
		Depot:                 r.Depot,
		Latitude:              r.Latitude.value,
		Longitude:             r.Longitude.value,
		Heading:               r.Heading.value,
		Speed:                 math.Max(0, r.Speed.value),
		Progress:              r.Progress.value,
		Capacity:              int(r.Capacity.value),
		PredictedDelaySeconds: int(math.Max(0, r.PredictedDelaySeconds.value)),
		IsActive:              !r.IsActive.set || r.IsActive.value,
		Emergency:             r.Emergency.set && r.Emergency.value,
		DriverID:              r.DriverID,
		DriverName:            r.DriverName,
		ConductorID:           r.ConductorID,
		ConductorName:         r.ConductorName,
	}
	if v.ID == "" {
		v.ID = r.ID
	}
	if r.LastUpdate.set {
		v.LastUpdate = r.LastUpdate.value.UnixMilli()
	}

	switch {
	case r.Passengers.set:
		v.Passengers = int(r.Passengers.value)
		v.OccupancyPercent = r.OccupancyPercent.value
		if !r.OccupancyPercent.set {
			v.OccupancyPercent = telemetry.OccupancyPercent(v.Capacity, v.Passengers)
		}
	case r.OccupancyPercent.set:
		v.OccupancyPercent = r.OccupancyPercent.value
		v.Passengers = telemetry.Passengers(v.Capacity, v.OccupancyPercent)
	}

	return Record{
		Vehicle:       v,
		HasActiveFlag: r.IsActive.set,
		HasLastUpdate: r.LastUpdate.set,
	}, nil
}

// Normalize derives the UI flags. A record without a last update is stale. Active means
// is_active is not false and the record is fresh.
func Normalize(rec Record, now time.Time) Vehicle {
	stale := !rec.HasLastUpdate || telemetry.IsStale(rec.LastUpdateTime(), now)
	return Vehicle{
		Vehicle:        rec.Vehicle,
		Stale:          stale,
		Active:         rec.IsActive && !stale,
		HasEmergency:   rec.Emergency,
		SeatsAvailable: rec.SeatsAvailable(),
	}
}
