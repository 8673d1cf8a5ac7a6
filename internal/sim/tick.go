package sim

import (
	"math"
	"time"

	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/telemetry"
	"controlroom.busops.org/internal/utils"
)

const (
	speedWalk = 5.0
	minSpeed  = 5.0
	maxSpeed  = 60.0
)

// TickConfig sets how far a bus moves per simulated second.
type TickConfig struct {
	// BaseIncrementPerSecond is the progress gained per second at ReferenceSpeed.
	BaseIncrementPerSecond float64
	// ReferenceSpeed in km/h.
	ReferenceSpeed float64
}

// DefaultTickConfig drives a bus over a whole route in half an hour at 30 km/h.
func DefaultTickConfig() TickConfig {
	return TickConfig{BaseIncrementPerSecond: 1.0 / 1800, ReferenceSpeed: 30}
}

// Step is the progress a vehicle at speed gains over dt.
func (c TickConfig) Step(speed float64, dt time.Duration) float64 {
	ref := c.ReferenceSpeed
	if ref <= 0 {
		ref = 30
	}
	return c.BaseIncrementPerSecond * dt.Seconds() * speed / ref
}

// Tick advances every vehicle by dt of simulated time and returns the new records. Input
// records are not modified. Progress wraps to the start of the route once it passes 1.
// Vehicles on routes missing from the table are carried over unchanged.
func Tick(vehicles []telemetry.Vehicle, dt time.Duration, table *routes.Table, cfg TickConfig, rnd RandomSource, now time.Time) []telemetry.Vehicle {
	zone := table.CongestionZone()
	out := make([]telemetry.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		r, ok := table.Route(v.RouteID)
		if !ok {
			out = append(out, v)
			continue
		}

		progress := v.Progress + cfg.Step(v.Speed, dt)
		if progress > 1 {
			progress = math.Mod(progress, 1)
		}

		pos := Interpolate(r.Stops, progress, rnd)
		if h, moved := utils.PlanarHeading(v.Latitude, v.Longitude, pos.Lat, pos.Lon); moved {
			v.Heading = h
		}

		wasInZone := zone.Contains(v.Latitude, v.Longitude)
		inZone := zone.Contains(pos.Lat, pos.Lon)
		if wasInZone != inZone {
			v.PredictedDelaySeconds = Delay(rnd, inZone)
		}

		v.Progress = progress
		v.Latitude = pos.Lat
		v.Longitude = pos.Lon
		v.Passengers = walkPassengers(rnd, v.Passengers, v.Capacity)
		v.OccupancyPercent = telemetry.OccupancyPercent(v.Capacity, v.Passengers)
		v.Speed = math.Round(clamp(v.Speed+uniform(rnd, -speedWalk, speedWalk), minSpeed, maxSpeed)*10) / 10
		v.LastUpdate = now.UnixMilli()
		out = append(out, v)
	}
	return out
}

// walkPassengers moves the head count by at most one in either direction.
func walkPassengers(rnd RandomSource, passengers, capacity int) int {
	passengers += int(rnd.Float64()*3) - 1
	if passengers < 0 {
		return 0
	}
	if passengers > capacity {
		return capacity
	}
	return passengers
}
