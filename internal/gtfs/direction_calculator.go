package gtfs

import (
	"sync"

	"controlroom.busops.org/internal/utils"
)

type position struct {
	lat, lon float64
	heading  float64
}

// DirectionCalculator derives a heading for feeds that omit bearing, from each vehicle's
// previous reported position.
type DirectionCalculator struct {
	mu   sync.Mutex
	last map[string]position
}

func NewDirectionCalculator() *DirectionCalculator {
	return &DirectionCalculator{
		last: make(map[string]position),
	}
}

// Heading returns the bearing from the vehicle's last position to (lat, lon). A vehicle
// seen for the first time, or one that has not moved, keeps its previous heading (0 when
// there is none).
func (dc *DirectionCalculator) Heading(vehicleID string, lat, lon float64) float64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	prev, seen := dc.last[vehicleID]
	heading := prev.heading
	if seen && (prev.lat != lat || prev.lon != lon) {
		heading = utils.NormalizeBearing(utils.BearingBetweenPoints(prev.lat, prev.lon, lat, lon))
	}
	dc.last[vehicleID] = position{lat: lat, lon: lon, heading: heading}
	return heading
}

// Observe records a position whose heading came from the feed itself.
func (dc *DirectionCalculator) Observe(vehicleID string, lat, lon, heading float64) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.last[vehicleID] = position{lat: lat, lon: lon, heading: heading}
}

// Forget drops vehicles no longer present in the feed.
func (dc *DirectionCalculator) Forget(keep map[string]bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for id := range dc.last {
		if !keep[id] {
			delete(dc.last, id)
		}
	}
}
