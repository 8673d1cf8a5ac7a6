package sim

import (
	"fmt"
	"math"
	"time"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/telemetry"
	"controlroom.busops.org/internal/utils"
)

const (
	peakOccupancyBase    = 0.70
	offPeakOccupancyBase = 0.40
	occupancySpread      = 0.30

	zoneDelayMin       = 180
	zoneDelayMax       = 720
	outsideDelayChance = 0.30
	outsideDelayMin    = 60
	outsideDelayMax    = 300
	zoneSpeedMin       = 12
	zoneSpeedMax       = 25
	outsideSpeedMin    = 25
	outsideSpeedMax    = 45
	headingLookAhead   = 0.01
	defaultFleetScale  = 1.0
)

// IsPeakHour reports whether t falls in the morning (07:00-10:00) or evening
// (17:00-20:00) peak.
func IsPeakHour(t time.Time) bool {
	h := t.Hour()
	return (h >= 7 && h < 10) || (h >= 17 && h < 20)
}

// Generator creates the initial simulated fleet.
type Generator struct {
	Table      *routes.Table
	Random     RandomSource
	Now        func() time.Time
	FleetScale float64
}

// FleetSize is the number of buses spawned for a route: its trip frequency scaled by
// the fleet scale, at least one.
func (g *Generator) FleetSize(r routes.Route) int {
	scale := g.FleetScale
	if scale <= 0 {
		scale = defaultFleetScale
	}
	n := int(math.Ceil(float64(r.TripFrequency) * scale))
	if n < 1 {
		return 1
	}
	return n
}

// Generate spawns the fleet for every route in the table. Vehicle ids are
// <routeId>-<nnn>.
func (g *Generator) Generate() []telemetry.Vehicle {
	now := g.Now()
	zone := g.Table.CongestionZone()
	var fleet []telemetry.Vehicle
	for _, r := range g.Table.Routes() {
		for i := 0; i < g.FleetSize(r); i++ {
			fleet = append(fleet, g.vehicle(r, i, now, zone))
		}
	}
	return fleet
}

func (g *Generator) vehicle(r routes.Route, i int, now time.Time, zone appconf.BoundingBox) telemetry.Vehicle {
	rnd := g.Random
	progress := rnd.Float64()
	pos := Interpolate(r.Stops, progress, rnd)
	inZone := zone.Contains(pos.Lat, pos.Lon)

	occupancy := Occupancy(rnd, now)
	passengers := telemetry.Passengers(r.Capacity, occupancy*100)

	id := fmt.Sprintf("%s-%03d", r.ID, i+1)
	v := telemetry.Vehicle{
		ID:                    id,
		RouteID:               r.ID,
		RouteName:             r.Name,
		Depot:                 r.Depot,
		Latitude:              pos.Lat,
		Longitude:             pos.Lon,
		Heading:               initialHeading(r, progress),
		Speed:                 math.Round(Speed(rnd, inZone)*10) / 10,
		Progress:              progress,
		Capacity:              r.Capacity,
		Passengers:            passengers,
		OccupancyPercent:      telemetry.OccupancyPercent(r.Capacity, passengers),
		PredictedDelaySeconds: Delay(rnd, inZone),
		IsActive:              true,
		LastUpdate:            now.UnixMilli(),
		DriverID:              "DRV-" + id,
		DriverName:            pick(rnd, driverNames),
		ConductorID:           "CND-" + id,
		ConductorName:         pick(rnd, conductorNames),
	}
	return v
}

// Occupancy draws a load factor in [0,1] for the time of day.
func Occupancy(rnd RandomSource, now time.Time) float64 {
	base := offPeakOccupancyBase
	if IsPeakHour(now) {
		base = peakOccupancyBase
	}
	return math.Min(1.0, base+rnd.Float64()*occupancySpread)
}

// Delay draws a predicted delay in seconds. Inside the congestion zone it is always
// between 180 and 720; outside there is a 30% chance of 60 to 300, else none.
func Delay(rnd RandomSource, inZone bool) int {
	if inZone {
		return int(math.Round(uniform(rnd, zoneDelayMin, zoneDelayMax)))
	}
	if chance(rnd, outsideDelayChance) {
		return int(math.Round(uniform(rnd, outsideDelayMin, outsideDelayMax)))
	}
	return 0
}

// Speed draws a speed in km/h, slower inside the congestion zone.
func Speed(rnd RandomSource, inZone bool) float64 {
	if inZone {
		return uniform(rnd, zoneSpeedMin, zoneSpeedMax)
	}
	return uniform(rnd, outsideSpeedMin, outsideSpeedMax)
}

func initialHeading(r routes.Route, progress float64) float64 {
	from := Interpolate(r.Stops, progress, nil)
	to := Interpolate(r.Stops, math.Min(1, progress+headingLookAhead), nil)
	if h, ok := utils.PlanarHeading(from.Lat, from.Lon, to.Lat, to.Lon); ok {
		return h
	}
	from = Interpolate(r.Stops, math.Max(0, progress-headingLookAhead), nil)
	h, _ := utils.PlanarHeading(from.Lat, from.Lon, to.Lat, to.Lon)
	return h
}
