package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/incidents"
	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/store"
)

func testConfig(mode appconf.Mode) appconf.Config {
	return appconf.Config{
		Env:             appconf.Test,
		Mode:            mode,
		StoreBackend:    appconf.StoreMemory,
		TickInterval:    time.Hour,
		SpeedMultiplier: 1,
		FleetScale:      0.1,
		Seed:            42,
	}
}

func TestLoadRoutes(t *testing.T) {
	t.Run("built-in table by default", func(t *testing.T) {
		table, err := LoadRoutes(testConfig(appconf.ModeSimulate), nil)
		require.NoError(t, err)
		assert.Equal(t, routes.Default().Len(), table.Len())
	})

	t.Run("configured zone overrides the table", func(t *testing.T) {
		cfg := testConfig(appconf.ModeSimulate)
		cfg.CongestionZone = appconf.BoundingBox{MinLat: 1, MinLon: 2, MaxLat: 3, MaxLon: 4}
		table, err := LoadRoutes(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, cfg.CongestionZone, table.CongestionZone())
	})

	t.Run("route file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "routes.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"routes":[{"id":"R1","stops":[
			{"name":"A","latitude":12.9,"longitude":77.6},
			{"name":"B","latitude":13.0,"longitude":77.7}]}]}`), 0o600))
		cfg := testConfig(appconf.ModeSimulate)
		cfg.RoutesFile = path
		table, err := LoadRoutes(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
	})

	t.Run("missing route file", func(t *testing.T) {
		cfg := testConfig(appconf.ModeSimulate)
		cfg.RoutesFile = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := LoadRoutes(cfg, nil)
		assert.Error(t, err)
	})
}

func TestSimulateMode(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(appconf.ModeSimulate), nil)
	require.NoError(t, err)
	require.NotNil(t, app.Simulator)
	assert.Nil(t, app.Bridge)

	require.NoError(t, app.Start(ctx))

	assert.Eventually(t, func() bool {
		return app.Feed.Status().State == live.StateOK && len(app.Feed.Vehicles()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	for _, collection := range []string{store.Drivers, store.Vehicles} {
		snap, err := app.Store.Get(ctx, collection)
		require.NoError(t, err)
		assert.True(t, snap.Exists, collection)
	}

	vehicle := app.Simulator.Vehicles()[0]
	inc, err := app.Incidents.Create(ctx, incidents.Report{
		VehicleID: vehicle.ID,
		Type:      incidents.TypeBreakdown,
		Severity:  incidents.SeverityHigh,
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		v, ok := app.Feed.Vehicle(vehicle.ID)
		return ok && v.Emergency
	}, 2*time.Second, 10*time.Millisecond, "incident flags the simulated bus")

	_, err = app.Incidents.Resolve(ctx, inc.ID, "", "towed")
	require.NoError(t, err)
	for _, v := range app.Simulator.Vehicles() {
		if v.ID == vehicle.ID {
			assert.False(t, v.Emergency)
		}
	}

	assert.NoError(t, app.Shutdown())
	assert.False(t, app.Simulator.Status().Running)
}

func TestConsumeLiveMode(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(appconf.ModeConsumeLive)
	cfg.VehiclePositionsURL = "http://127.0.0.1:1/vehicle-positions"

	s := store.NewMemoryStore()
	app := NewWithStore(cfg, s, routes.Default(), nil)
	assert.Nil(t, app.Simulator)
	require.NotNil(t, app.Bridge)

	require.NoError(t, s.Set(ctx, "live-telemetry/bus-1", map[string]any{
		"id": "bus-1", "route_id": "500D", "latitude": 12.9, "longitude": 77.6,
		"last_update": time.Now().UnixMilli(),
	}))

	require.NoError(t, app.Start(ctx))
	v, ok := app.Feed.Vehicle("bus-1")
	require.True(t, ok)
	assert.True(t, v.Active)
	assert.NotEmpty(t, app.Bridge.Status().LastError, "unreachable feed is recorded")

	_, err := app.Incidents.Create(ctx, incidents.Report{
		VehicleID: "bus-1",
		Type:      incidents.TypeMedical,
		Severity:  incidents.SeverityCritical,
	})
	require.NoError(t, err)
	v, _ = app.Feed.Vehicle("bus-1")
	assert.True(t, v.Emergency, "store flagger patches the live record")

	assert.NoError(t, app.Shutdown())
}

// unreachableBackend fails every call the way a dropped Redis connection does.
type unreachableBackend struct{}

var errUnreachable = errors.New("connection refused")

func (unreachableBackend) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, errUnreachable
}
func (unreachableBackend) Save(context.Context, string, []byte) error { return errUnreachable }
func (unreachableBackend) Delete(context.Context, string) error { return errUnreachable }
func (unreachableBackend) Close() error { return nil }

func TestStartWithUnavailableStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewBlobStore(ctx, unreachableBackend{}, nil)
	require.NoError(t, err)

	app := NewWithStore(testConfig(appconf.ModeConsumeLive), s, routes.Default(), nil)
	require.NoError(t, app.Start(ctx), "the process keeps running while the store is down")

	st := app.Feed.Status()
	assert.Equal(t, live.StateError, st.State)
	assert.Contains(t, st.Error, "connection refused")
	assert.Empty(t, app.Feed.Vehicles())

	assert.NoError(t, app.Shutdown())
}
