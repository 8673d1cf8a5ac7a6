// Package routes holds the immutable route reference data the simulator and map work from.
package routes

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-polyline"

	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/utils"
)

const (
	DefaultCapacity      = 50
	DefaultTripFrequency = 1
)

var (
	ErrTooFewStops    = errors.New("route needs at least two stops")
	ErrDuplicateRoute = errors.New("duplicate route id")
	ErrInvalidRoute   = errors.New("invalid route")
)

type Stop struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Route is an ordered sequence of stops served by one line.
type Route struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Stops         []Stop `json:"stops" yaml:"stops"`
	Capacity      int    `json:"capacity" yaml:"capacity"`
	Depot         string `json:"depot" yaml:"depot"`
	TripFrequency int    `json:"trip_frequency" yaml:"trip_frequency"`
	Color         string `json:"color,omitempty" yaml:"color,omitempty"`
}

// validate checks a route and fills defaults in place.
func (r *Route) validate() error {
	if err := utils.ValidateID(r.ID); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRoute, r.ID, err)
	}
	if len(r.Stops) < 2 {
		return fmt.Errorf("route %s: %w", r.ID, ErrTooFewStops)
	}
	for i, s := range r.Stops {
		if err := utils.ValidateLatitude(s.Latitude); err != nil {
			return fmt.Errorf("%w %s stop %d: %v", ErrInvalidRoute, r.ID, i, err)
		}
		if err := utils.ValidateLongitude(s.Longitude); err != nil {
			return fmt.Errorf("%w %s stop %d: %v", ErrInvalidRoute, r.ID, i, err)
		}
	}
	if r.Capacity < 0 || r.TripFrequency < 0 {
		return fmt.Errorf("%w %s: capacity and trip frequency must not be negative", ErrInvalidRoute, r.ID)
	}
	if r.Capacity == 0 {
		r.Capacity = DefaultCapacity
	}
	if r.TripFrequency == 0 {
		r.TripFrequency = DefaultTripFrequency
	}
	if r.Name == "" {
		r.Name = r.Stops[0].Name + " - " + r.Stops[len(r.Stops)-1].Name
	}
	return nil
}

// Polyline encodes the stop sequence in the Google polyline format.
func (r Route) Polyline() string {
	coords := make([][]float64, 0, len(r.Stops))
	for _, s := range r.Stops {
		coords = append(coords, []float64{s.Latitude, s.Longitude})
	}
	return string(polyline.EncodeCoords(coords))
}

// LengthKm is the sum of the great-circle distances between consecutive stops.
func (r Route) LengthKm() float64 {
	var total float64
	for i := 1; i < len(r.Stops); i++ {
		a, b := r.Stops[i-1], r.Stops[i]
		total += utils.HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	}
	return total
}

func (r Route) Reference() models.RouteReference {
	return models.RouteReference{
		ID:       r.ID,
		Name:     r.Name,
		Depot:    r.Depot,
		Color:    r.Color,
		Capacity: r.Capacity,
	}
}

// Model is the API representation of the route.
func (r Route) Model() models.Route {
	stops := make([]models.RouteStop, 0, len(r.Stops))
	for _, s := range r.Stops {
		stops = append(stops, models.RouteStop{
			Name:     s.Name,
			Location: models.Location{Lat: s.Latitude, Lon: s.Longitude},
		})
	}
	return models.Route{
		RouteReference: r.Reference(),
		TripFrequency:  r.TripFrequency,
		LengthKm:       r.LengthKm(),
		Polyline:       r.Polyline(),
		Stops:          stops,
	}
}
