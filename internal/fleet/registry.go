// Package fleet maintains the driver and vehicle registries derived from the simulated fleet.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/telemetry"
)

// Driver is stored at drivers/{driverId}.
type Driver struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VehicleID string `json:"vehicle_id"`
	RouteID   string `json:"route_id"`
	Depot     string `json:"depot,omitempty"`
	Status    string `json:"status"`
}

// Vehicle is stored at vehicles/{vehicleId}.
type Vehicle struct {
	ID            string `json:"id"`
	Registration  string `json:"registration"`
	RouteID       string `json:"route_id"`
	RouteName     string `json:"route_name,omitempty"`
	Depot         string `json:"depot,omitempty"`
	Capacity      int    `json:"capacity"`
	DriverID      string `json:"driver_id,omitempty"`
	ConductorID   string `json:"conductor_id,omitempty"`
	ConductorName string `json:"conductor_name,omitempty"`
	Status        string `json:"status"`
}

const statusInService = "in_service"

// Result reports which registries were written.
type Result struct {
	DriversCreated  bool
	VehiclesCreated bool
}

// EnsureRegistry writes drivers and vehicles derived from the fleet, each collection only
// when it is absent. Existing registries are never touched.
func EnsureRegistry(ctx context.Context, s store.Store, fleet []telemetry.Vehicle, logger *slog.Logger) (Result, error) {
	logger = logging.Component(logger, "fleet_registry")
	sorted := append([]telemetry.Vehicle(nil), fleet...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var res Result
	created, err := ensure(ctx, s, store.Drivers, func() any { return drivers(sorted) })
	if err != nil {
		return res, err
	}
	res.DriversCreated = created

	created, err = ensure(ctx, s, store.Vehicles, func() any { return vehicles(sorted) })
	if err != nil {
		return res, err
	}
	res.VehiclesCreated = created

	logging.LogOperation(logger, "fleet_registry_checked",
		slog.Bool("drivers_created", res.DriversCreated),
		slog.Bool("vehicles_created", res.VehiclesCreated),
		slog.Int("fleet_size", len(sorted)))
	return res, nil
}

func ensure(ctx context.Context, s store.Store, collection string, build func() any) (bool, error) {
	snap, err := s.Get(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", collection, err)
	}
	if snap.Exists {
		return false, nil
	}
	if err := s.Set(ctx, collection, build()); err != nil {
		return false, fmt.Errorf("write %s: %w", collection, err)
	}
	return true, nil
}

func drivers(fleet []telemetry.Vehicle) map[string]Driver {
	out := make(map[string]Driver, len(fleet))
	for _, v := range fleet {
		if v.DriverID == "" {
			continue
		}
		out[v.DriverID] = Driver{
			ID:        v.DriverID,
			Name:      v.DriverName,
			VehicleID: v.ID,
			RouteID:   v.RouteID,
			Depot:     v.Depot,
			Status:    statusInService,
		}
	}
	return out
}

func vehicles(fleet []telemetry.Vehicle) map[string]Vehicle {
	out := make(map[string]Vehicle, len(fleet))
	for i, v := range fleet {
		out[v.ID] = Vehicle{
			ID:            v.ID,
			Registration:  Registration(i),
			RouteID:       v.RouteID,
			RouteName:     v.RouteName,
			Depot:         v.Depot,
			Capacity:      v.Capacity,
			DriverID:      v.DriverID,
			ConductorID:   v.ConductorID,
			ConductorName: v.ConductorName,
			Status:        statusInService,
		}
	}
	return out
}

// Registration gives the n-th registry vehicle a plate number.
func Registration(n int) string {
	return fmt.Sprintf("KA-01-F-%04d", 1001+n)
}
