// Package markers decides which vehicles are drawn on the map and how, and diffs that
// marker set against what a client already shows.
package markers

import (
	"fmt"
	"net/url"
	"slices"

	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/utils"
)

// OccupancyBand buckets occupancy percent.
type OccupancyBand string

const (
	BandLow    OccupancyBand = "low"
	BandMedium OccupancyBand = "medium"
	BandHigh   OccupancyBand = "high"
)

// Band edges in percent: low is below 40, high is above 75.
const (
	lowBandBelow  = 40.0
	highBandAbove = 75.0
)

func BandOf(occupancyPercent float64) OccupancyBand {
	switch {
	case occupancyPercent < lowBandBelow:
		return BandLow
	case occupancyPercent > highBandAbove:
		return BandHigh
	default:
		return BandMedium
	}
}

// StatusFilter selects vehicles by liveness.
type StatusFilter string

const (
	StatusActive   StatusFilter = "active"
	StatusInactive StatusFilter = "inactive"
	StatusStale    StatusFilter = "stale"
)

// Anomaly thresholds.
const (
	AnomalyDelaySeconds     = 300
	AnomalyOccupancyAtLeast = 95.0
)

// IsAnomaly reports whether a vehicle needs attention: badly delayed, nearly full, or
// no longer reporting.
func IsAnomaly(v live.Vehicle) bool {
	return v.PredictedDelaySeconds >= AnomalyDelaySeconds ||
		v.OccupancyPercent >= AnomalyOccupancyAtLeast ||
		v.Stale
}

// Filters is the map filter set. Zero values mean "any".
type Filters struct {
	Routes        []string      `json:"routes,omitempty"`
	Depot         string        `json:"depot,omitempty"`
	Status        StatusFilter  `json:"status,omitempty"`
	AnomalyOnly   bool          `json:"anomalyOnly,omitempty"`
	EmergencyOnly bool          `json:"emergencyOnly,omitempty"`
	Occupancy     OccupancyBand `json:"occupancy,omitempty"`
}

// Predicate is one active filter.
type Predicate func(live.Vehicle) bool

// Predicates returns the active filters in evaluation order: route, depot, status,
// anomaly, emergency, occupancy band.
func (f Filters) Predicates() []Predicate {
	var ps []Predicate
	if len(f.Routes) > 0 {
		routes := f.Routes
		ps = append(ps, func(v live.Vehicle) bool { return slices.Contains(routes, v.RouteID) })
	}
	if f.Depot != "" {
		depot := f.Depot
		ps = append(ps, func(v live.Vehicle) bool { return v.Depot == depot })
	}
	if f.Status != "" {
		status := f.Status
		ps = append(ps, func(v live.Vehicle) bool { return matchStatus(status, v) })
	}
	if f.AnomalyOnly {
		ps = append(ps, IsAnomaly)
	}
	if f.EmergencyOnly {
		ps = append(ps, func(v live.Vehicle) bool { return v.HasEmergency })
	}
	if f.Occupancy != "" {
		band := f.Occupancy
		ps = append(ps, func(v live.Vehicle) bool { return BandOf(v.OccupancyPercent) == band })
	}
	return ps
}

func matchStatus(status StatusFilter, v live.Vehicle) bool {
	switch status {
	case StatusActive:
		return v.Active
	case StatusInactive:
		return !v.Active && !v.Stale
	case StatusStale:
		return v.Stale
	default:
		return true
	}
}

// Match reports whether v passes every active filter.
func (f Filters) Match(v live.Vehicle) bool {
	for _, p := range f.Predicates() {
		if !p(v) {
			return false
		}
	}
	return true
}

// Apply keeps the vehicles that match, in order.
func (f Filters) Apply(vehicles []live.Vehicle) []live.Vehicle {
	ps := f.Predicates()
	out := make([]live.Vehicle, 0, len(vehicles))
next:
	for _, v := range vehicles {
		for _, p := range ps {
			if !p(v) {
				continue next
			}
		}
		out = append(out, v)
	}
	return out
}

// FiltersFromQuery reads route, depot, status, anomaly, emergency and occupancy query
// parameters.
func FiltersFromQuery(q url.Values) (Filters, map[string][]string) {
	var f Filters
	fieldErrors := map[string][]string{}

	f.Routes = utils.ParseListParam(q, "route")
	f.Depot = q.Get("depot")
	f.AnomalyOnly, fieldErrors = utils.ParseBoolParam(q, "anomaly", fieldErrors)
	f.EmergencyOnly, fieldErrors = utils.ParseBoolParam(q, "emergency", fieldErrors)

	switch s := StatusFilter(q.Get("status")); s {
	case "", StatusActive, StatusInactive, StatusStale:
		f.Status = s
	default:
		fieldErrors["status"] = append(fieldErrors["status"], fmt.Sprintf("Invalid field value for field %q.", "status"))
	}

	switch b := OccupancyBand(q.Get("occupancy")); b {
	case "", BandLow, BandMedium, BandHigh:
		f.Occupancy = b
	default:
		fieldErrors["occupancy"] = append(fieldErrors["occupancy"], fmt.Sprintf("Invalid field value for field %q.", "occupancy"))
	}

	if len(fieldErrors) == 0 {
		return f, nil
	}
	return f, fieldErrors
}
