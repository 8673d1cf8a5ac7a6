package restapi

import (
	"net/http"
	"net/url"

	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/markers"
	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/utils"
)

const (
	defaultNearbyRadiusKm = 1.0
	maxNearbyRadiusKm     = 50.0
)

// vehicleEntry is a live vehicle with its derived map attributes.
type vehicleEntry struct {
	live.Vehicle
	OccupancyBand markers.OccupancyBand `json:"occupancyBand"`
	Anomaly       bool                  `json:"isAnomaly"`
	VisualState   markers.VisualState   `json:"visualState"`
	Compass       string                `json:"compass"`
}

func newVehicleEntry(v live.Vehicle) vehicleEntry {
	return vehicleEntry{
		Vehicle:       v,
		OccupancyBand: markers.BandOf(v.OccupancyPercent),
		Anomaly:       markers.IsAnomaly(v),
		VisualState:   markers.StateOf(v),
		Compass:       utils.BearingToCompass(v.Heading),
	}
}

// nearby restricts the list to vehicles within radius km of a point.
type nearby struct {
	lat, lon, radiusKm float64
}

func (n nearby) includes(v live.Vehicle) bool {
	return utils.HaversineKm(n.lat, n.lon, v.Latitude, v.Longitude) <= n.radiusKm
}

// nearbyFromQuery reads lat, lon and radius (km). Both coordinates are needed to filter.
func nearbyFromQuery(q url.Values) (*nearby, map[string][]string) {
	if q.Get("lat") == "" && q.Get("lon") == "" {
		return nil, nil
	}
	lat, fieldErrors := utils.ParseFloatParam(q, "lat", nil)
	lon, fieldErrors := utils.ParseFloatParam(q, "lon", fieldErrors)
	radius, fieldErrors := utils.ParseFloatParam(q, "radius", fieldErrors)
	if len(fieldErrors) > 0 {
		return nil, fieldErrors
	}
	if q.Get("lat") == "" || q.Get("lon") == "" {
		return nil, map[string][]string{"location": {"lat and lon must be given together"}}
	}
	if locErrors := utils.ValidateLocation(lat, lon); len(locErrors) > 0 {
		return nil, locErrors
	}
	if radius == 0 {
		radius = defaultNearbyRadiusKm
	}
	if radius < 0 || radius > maxNearbyRadiusKm {
		return nil, map[string][]string{"radius": {"radius must be between 0 and 50 km"}}
	}
	return &nearby{lat: lat, lon: lon, radiusKm: radius}, nil
}

func (api *RestAPI) vehiclesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters, fieldErrors := markers.FiltersFromQuery(query)
	near, nearErrors := nearbyFromQuery(query)
	for k, v := range nearErrors {
		if fieldErrors == nil {
			fieldErrors = map[string][]string{}
		}
		fieldErrors[k] = append(fieldErrors[k], v...)
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	vehicles := filters.Apply(api.Feed.Vehicles())
	list := make([]vehicleEntry, 0, len(vehicles))
	routeIDs := map[string]bool{}
	for _, v := range vehicles {
		if near != nil && !near.includes(v) {
			continue
		}
		list = append(list, newVehicleEntry(v))
		routeIDs[v.RouteID] = true
	}
	api.sendResponse(w, r, models.NewListResponse(list, api.routeReferences(routeIDs)))
}

func (api *RestAPI) vehicleHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}
	v, ok := api.Feed.Vehicle(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(newVehicleEntry(v), api.routeReferences(map[string]bool{v.RouteID: true})))
}
