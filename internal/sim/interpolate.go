package sim

import (
	"math"

	"controlroom.busops.org/internal/routes"
)

// Jitter is the largest random offset, in degrees, added to each axis of an interpolated
// position.
const Jitter = 0.00025

type Point struct {
	Lat float64
	Lon float64
}

// Interpolate places a vehicle at progress along stops by linear interpolation between the
// two bracketing stops, then adds up to ±Jitter per axis. stops must hold at least two
// entries; routes.NewTable guarantees that. Progress is clamped to [0,1]. A nil rnd adds
// no jitter.
func Interpolate(stops []routes.Stop, progress float64, rnd RandomSource) Point {
	n := len(stops)
	progress = clamp(progress, 0, 1)

	scaled := progress * float64(n-1)
	idx := int(math.Floor(scaled))
	if idx > n-2 {
		idx = n - 2
	}
	if idx < 0 {
		idx = 0
	}
	frac := scaled - float64(idx)

	a, b := stops[idx], stops[idx+1]
	p := Point{
		Lat: a.Latitude + (b.Latitude-a.Latitude)*frac,
		Lon: a.Longitude + (b.Longitude-a.Longitude)*frac,
	}
	if rnd != nil {
		p.Lat += uniform(rnd, -Jitter, Jitter)
		p.Lon += uniform(rnd, -Jitter, Jitter)
	}
	return p
}
