package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/jamespfennell/gtfs"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/telemetry"
	"controlroom.busops.org/internal/utils"
)

const metersPerSecondToKmh = 3.6

func loadRealtimeData(ctx context.Context, source string, headers map[string]string) (*gtfs.Realtime, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", source, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Add(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_realtime_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vehicle positions feed returned %s", resp.Status)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return gtfs.ParseRealtime(b, &gtfs.ParseRealtimeOptions{})
}

// VehicleID is the id a feed vehicle is stored under: the vehicle id, else its label,
// else the trip id.
func VehicleID(vehicle gtfs.Vehicle) string {
	if vehicle.ID != nil {
		if vehicle.ID.ID != "" {
			return vehicle.ID.ID
		}
		if vehicle.ID.Label != "" {
			return vehicle.ID.Label
		}
	}
	if vehicle.Trip != nil {
		return vehicle.Trip.ID.ID
	}
	return ""
}

// VehicleFields maps a feed vehicle onto the live-telemetry fields it carries. Fields the
// feed does not report, such as emergency or crew, are left out so a patch keeps them.
// ok is false when the vehicle has no usable position.
func VehicleFields(vehicle gtfs.Vehicle, table *routes.Table, now time.Time, directions *DirectionCalculator) (fields map[string]any, ok bool) {
	id := VehicleID(vehicle)
	p := vehicle.Position
	if id == "" || p == nil || p.Latitude == nil || p.Longitude == nil {
		return nil, false
	}
	lat := float64(*p.Latitude)
	lon := float64(*p.Longitude)
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, false
	}

	fields = map[string]any{
		"id":        id,
		"latitude":  lat,
		"longitude": lon,
		"is_active": true,
	}

	if p.Bearing != nil && !math.IsNaN(float64(*p.Bearing)) {
		heading := utils.NormalizeBearing(float64(*p.Bearing))
		fields["heading"] = heading
		if directions != nil {
			directions.Observe(id, lat, lon, heading)
		}
	} else if directions != nil {
		fields["heading"] = directions.Heading(id, lat, lon)
	}

	if p.Speed != nil {
		fields["speed"] = math.Round(float64(*p.Speed)*metersPerSecondToKmh*10) / 10
	}

	lastUpdate := now
	if vehicle.Timestamp != nil && !vehicle.Timestamp.IsZero() {
		lastUpdate = *vehicle.Timestamp
	}
	fields["last_update"] = lastUpdate.UnixMilli()

	var route routes.Route
	var known bool
	if vehicle.Trip != nil && vehicle.Trip.ID.RouteID != "" {
		fields["route_id"] = vehicle.Trip.ID.RouteID
		if table != nil {
			route, known = table.Route(vehicle.Trip.ID.RouteID)
		}
	}
	if known {
		fields["route_name"] = route.Name
		fields["depot"] = route.Depot
		fields["capacity"] = route.Capacity
	}

	if vehicle.OccupancyPercentage != nil {
		occupancy := math.Min(float64(*vehicle.OccupancyPercentage), 100)
		fields["occupancy_percent"] = occupancy
		if known {
			fields["passengers"] = telemetry.Passengers(route.Capacity, occupancy)
		}
	}

	return fields, true
}
