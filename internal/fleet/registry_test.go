package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/telemetry"
)

func sampleFleet() []telemetry.Vehicle {
	return []telemetry.Vehicle{
		{ID: "500D-002", RouteID: "500D", Depot: "Hebbal", Capacity: 50, DriverID: "DRV-500D-002", DriverName: "Ravi", ConductorID: "CND-500D-002", ConductorName: "Meena"},
		{ID: "500D-001", RouteID: "500D", Depot: "Hebbal", Capacity: 50, DriverID: "DRV-500D-001", DriverName: "Suresh", ConductorID: "CND-500D-001", ConductorName: "Lakshmi"},
	}
}

func TestEnsureRegistry(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()

	res, err := EnsureRegistry(ctx, s, sampleFleet(), nil)
	require.NoError(t, err)
	assert.True(t, res.DriversCreated)
	assert.True(t, res.VehiclesCreated)

	d, found, err := store.GetRecord[Driver](ctx, s, "drivers/DRV-500D-001")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Suresh", d.Name)
	assert.Equal(t, "500D-001", d.VehicleID)

	v, found, err := store.GetRecord[Vehicle](ctx, s, "vehicles/500D-001")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "KA-01-F-1001", v.Registration, "numbered in id order")
	assert.Equal(t, "Lakshmi", v.ConductorName)

	t.Run("generated once", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "drivers/DRV-500D-001/name", "Renamed"))
		res, err := EnsureRegistry(ctx, s, nil, nil)
		require.NoError(t, err)
		assert.False(t, res.DriversCreated)
		assert.False(t, res.VehiclesCreated)

		d, _, err := store.GetRecord[Driver](ctx, s, "drivers/DRV-500D-001")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", d.Name)
	})

	t.Run("missing collection is filled in alone", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "vehicles"))
		res, err := EnsureRegistry(ctx, s, sampleFleet(), nil)
		require.NoError(t, err)
		assert.False(t, res.DriversCreated)
		assert.True(t, res.VehiclesCreated)
	})
}
