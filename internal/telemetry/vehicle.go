// Package telemetry defines the vehicle record stored under live-telemetry/{vehicleId}.
package telemetry

import (
	"math"
	"time"
)

// StaleAfter is how old a record may get before it is considered stale.
const StaleAfter = 5 * time.Minute

// Vehicle is the live telemetry record as written to the store. LastUpdate is unix
// milliseconds.
type Vehicle struct {
	ID                    string  `json:"id"`
	RouteID               string  `json:"route_id"`
	RouteName             string  `json:"route_name,omitempty"`
	Depot                 string  `json:"depot,omitempty"`
	Latitude              float64 `json:"latitude"`
	Longitude             float64 `json:"longitude"`
	Heading               float64 `json:"heading"`
	Speed                 float64 `json:"speed"`
	Progress              float64 `json:"progress"`
	OccupancyPercent      float64 `json:"occupancy_percent"`
	Passengers            int     `json:"passengers"`
	Capacity              int     `json:"capacity"`
	PredictedDelaySeconds int     `json:"predicted_delay_seconds"`
	IsActive              bool    `json:"is_active"`
	LastUpdate            int64   `json:"last_update"`
	Emergency             bool    `json:"emergency"`
	DriverID              string  `json:"driver_id,omitempty"`
	DriverName            string  `json:"driver_name,omitempty"`
	ConductorID           string  `json:"conductor_id,omitempty"`
	ConductorName         string  `json:"conductor_name,omitempty"`
}

func (v Vehicle) LastUpdateTime() time.Time {
	return time.UnixMilli(v.LastUpdate)
}

// SeatsAvailable is the remaining capacity, never negative.
func (v Vehicle) SeatsAvailable() int {
	return SeatsAvailable(v.Capacity, v.Passengers)
}

// Passengers derives the head count from capacity and an occupancy percentage.
func Passengers(capacity int, occupancyPercent float64) int {
	return int(math.Round(float64(capacity) * occupancyPercent / 100))
}

// OccupancyPercent derives the occupancy percentage from a head count.
func OccupancyPercent(capacity, passengers int) float64 {
	if capacity <= 0 {
		return 0
	}
	return math.Round(float64(passengers)*1000/float64(capacity)) / 10
}

func SeatsAvailable(capacity, passengers int) int {
	if passengers >= capacity {
		return 0
	}
	return capacity - passengers
}

// IsStale reports whether a record last updated at lastUpdate is older than StaleAfter
// at now. Exactly StaleAfter is still fresh.
func IsStale(lastUpdate, now time.Time) bool {
	return now.Sub(lastUpdate) > StaleAfter
}

// Collection is the value stored at live-telemetry, keyed by vehicle id.
type Collection map[string]Vehicle

// NewCollection keys vehicles by id.
func NewCollection(vehicles []Vehicle) Collection {
	c := make(Collection, len(vehicles))
	for _, v := range vehicles {
		c[v.ID] = v
	}
	return c
}
