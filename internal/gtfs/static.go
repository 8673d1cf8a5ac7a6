package gtfs

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jamespfennell/gtfs"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/routes"
)

// isLocalFile treats anything that is not an http(s) URL as a path.
func isLocalFile(source string) bool {
	return !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://")
}

func rawGtfsData(source string, isLocalFile bool) ([]byte, error) {
	var b []byte
	var err error

	if isLocalFile {
		b, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
	} else {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("error downloading GTFS data: %w", err)
		}
		defer logging.SafeCloseWithLogging(resp.Body,
			slog.Default().With(slog.String("component", "gtfs_static_downloader")),
			"http_response_body")

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("error downloading GTFS data: %s", resp.Status)
		}

		b, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading GTFS data: %w", err)
		}
	}
	return b, nil
}

// LoadStatic loads and parses a GTFS static feed from either a URL or a local zip file.
func LoadStatic(source string) (*gtfs.Static, error) {
	b, err := rawGtfsData(source, isLocalFile(source))
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}

	staticData, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}

	return staticData, nil
}

// LoadRoutes imports the route table from a GTFS static feed. Routes that cannot be
// simulated are logged and left out.
func LoadRoutes(source string, defaults routes.Defaults, logger *slog.Logger) ([]routes.Route, error) {
	logger = logging.Component(logger, "gtfs_static")

	staticData, err := LoadStatic(source)
	if err != nil {
		return nil, err
	}

	imported, skipped := routes.FromGTFS(staticData, defaults)
	for _, id := range skipped {
		logger.Warn("skipping GTFS route without a usable trip", slog.String("route_id", id))
	}
	if len(imported) == 0 {
		return nil, fmt.Errorf("GTFS feed %s has no usable routes", source)
	}

	region := RegionBounds(staticData)
	logging.LogOperation(logger, "gtfs_routes_imported",
		slog.Int("routes", len(imported)),
		slog.Int("skipped", len(skipped)),
		slog.Float64("min_lat", region.MinLat),
		slog.Float64("min_lon", region.MinLon),
		slog.Float64("max_lat", region.MaxLat),
		slog.Float64("max_lon", region.MaxLon))
	return imported, nil
}

// RegionBounds is the box covering the feed's shapes, or its stops when it has no shapes.
func RegionBounds(staticData *gtfs.Static) appconf.BoundingBox {
	var box appconf.BoundingBox
	first := true
	extend := func(lat, lon float64) {
		if first {
			box = appconf.BoundingBox{MinLat: lat, MinLon: lon, MaxLat: lat, MaxLon: lon}
			first = false
			return
		}
		box.MinLat = min(box.MinLat, lat)
		box.MaxLat = max(box.MaxLat, lat)
		box.MinLon = min(box.MinLon, lon)
		box.MaxLon = max(box.MaxLon, lon)
	}

	for _, shape := range staticData.Shapes {
		for _, point := range shape.Points {
			extend(point.Latitude, point.Longitude)
		}
	}
	if first {
		for _, stop := range staticData.Stops {
			if stop.Latitude != nil && stop.Longitude != nil {
				extend(*stop.Latitude, *stop.Longitude)
			}
		}
	}
	return box
}
