package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/telemetry"
)

var now = time.Date(2025, 3, 3, 13, 0, 0, 0, time.UTC)

func testTable(t *testing.T) *routes.Table {
	t.Helper()
	stops := []routes.Stop{{Name: "A", Latitude: 12.90, Longitude: 77.60}, {Name: "B", Latitude: 12.95, Longitude: 77.65}}
	table, err := routes.NewTable([]routes.Route{
		{ID: "busy", Depot: "Hebbal", Capacity: 50, TripFrequency: 2, Stops: stops},
		{ID: "quiet", Depot: "Yelahanka", Capacity: 40, TripFrequency: 1, Stops: stops},
		{ID: "idle", Capacity: 40, TripFrequency: 1, Stops: stops},
	}, appconf.BoundingBox{})
	require.NoError(t, err)
	return table
}

func bus(id, route string, occupancy float64, delay int, stale bool) live.Vehicle {
	return live.Vehicle{
		Vehicle: telemetry.Vehicle{
			ID: id, RouteID: route, Latitude: 12.92, Longitude: 77.62,
			OccupancyPercent: occupancy, PredictedDelaySeconds: delay, IsActive: true,
		},
		Stale:  stale,
		Active: !stale,
	}
}

func testFleet() []live.Vehicle {
	return []live.Vehicle{
		bus("busy-001", "busy", 92, 400, false),
		bus("busy-002", "busy", 88, 360, false),
		bus("quiet-001", "quiet", 20, 0, false),
		bus("quiet-002", "quiet", 50, 0, true),
	}
}

func TestGenerate(t *testing.T) {
	ins := Generate("2025-03-03", testFleet(), testTable(t), now)

	assert.Equal(t, "2025-03-03", ins.Date)
	assert.Len(t, ins.Heatmap, 3, "stale vehicles are not on the heatmap")
	assert.InDelta(t, 0.92, ins.Heatmap[0].Weight, 1e-9)

	require.Len(t, ins.Forecasts, 3)
	for _, f := range ins.Forecasts {
		assert.Len(t, f.Hourly, serviceEndHour-serviceStartHour)
	}

	kinds := map[string]Suggestion{}
	for _, s := range ins.Suggestions {
		kinds[s.Kind+"/"+s.RouteID+s.VehicleID] = s
	}
	assert.Contains(t, kinds, "crowded_route/busy")
	assert.Contains(t, kinds, "delayed_route/busy")
	assert.Contains(t, kinds, "underused_route/quiet")
	assert.Contains(t, kinds, "stale_vehicle/quietquiet-002")
	assert.Len(t, ins.Suggestions, 4, "routes without reports get no route suggestions")
	assert.Equal(t, PriorityHigh, ins.Suggestions[0].Priority)
	assert.Contains(t, ins.Suggestions[0].Message, "Hebbal")
}

func TestForecast(t *testing.T) {
	table := testTable(t)
	busy, _ := table.Route("busy")
	idle, _ := table.Route("idle")

	t.Run("peak hours carry more passengers", func(t *testing.T) {
		f := forecast(idle, routeStats{}, now)
		byHour := map[int]HourDemand{}
		for _, h := range f.Hourly {
			byHour[h.Hour] = h
		}
		assert.True(t, byHour[8].Peak)
		assert.False(t, byHour[13].Peak)
		assert.Equal(t, 34, byHour[8].Passengers)
		assert.Equal(t, 22, byHour[13].Passengers)
	})

	t.Run("observed load scales the forecast within bounds", func(t *testing.T) {
		hot := forecast(busy, routeStats{vehicles: 2, reporting: 2, occupancySum: 200}, now)
		for _, h := range hot.Hourly {
			assert.LessOrEqual(t, h.Passengers, 100, "never above capacity")
		}
		cold := forecast(busy, routeStats{vehicles: 2, reporting: 2, occupancySum: 0}, now)
		assert.Equal(t, int(100*offPeakLoad*minObservedRatio+0.5), cold.Hourly[13-serviceStartHour].Passengers)
	})
}

func TestEnsureForDay(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()
	table := testTable(t)

	first, created, err := EnsureForDay(ctx, s, "2025-03-03", testFleet(), table, now, nil)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := EnsureForDay(ctx, s, "2025-03-03", nil, table, now.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.False(t, created, "generated once per day")
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
	assert.Len(t, second.Heatmap, 3)

	_, created, err = EnsureForDay(ctx, s, "2025-03-04", nil, table, now, nil)
	require.NoError(t, err)
	assert.True(t, created)

	_, _, err = EnsureForDay(ctx, s, "03/03/2025", nil, table, now, nil)
	assert.Error(t, err)
}
