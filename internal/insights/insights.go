// Package insights builds the daily advisory payload: a load heatmap, per-route hourly
// demand forecasts and operator suggestions.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/sim"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/utils"
)

const (
	serviceStartHour = 5
	serviceEndHour   = 23

	peakLoad    = 0.85
	offPeakLoad = 0.55

	crowdedAtLeast   = 85.0
	underusedBelow   = 30.0
	delayedAtLeast   = 300
	minObservedRatio = 0.5
	maxObservedRatio = 1.5
)

type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight float64 `json:"weight"`
}

type HourDemand struct {
	Hour       int  `json:"hour"`
	Passengers int  `json:"passengers"`
	Peak       bool `json:"peak"`
}

type Forecast struct {
	RouteID   string       `json:"route_id"`
	RouteName string       `json:"route_name"`
	Hourly    []HourDemand `json:"hourly"`
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var priorityRank = map[Priority]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

// Suggestion kinds.
const (
	KindCrowdedRoute   = "crowded_route"
	KindDelayedRoute   = "delayed_route"
	KindUnderusedRoute = "underused_route"
	KindStaleVehicle   = "stale_vehicle"
)

type Suggestion struct {
	Kind      string   `json:"kind"`
	Priority  Priority `json:"priority"`
	RouteID   string   `json:"route_id,omitempty"`
	VehicleID string   `json:"vehicle_id,omitempty"`
	Message   string   `json:"message"`
}

// Insights is stored at ai_insights/{YYYY-MM-DD}.
type Insights struct {
	Date        string       `json:"date"`
	GeneratedAt int64        `json:"generated_at"`
	Heatmap     []HeatPoint  `json:"heatmap"`
	Forecasts   []Forecast   `json:"forecasts"`
	Suggestions []Suggestion `json:"suggestions"`
}

type routeStats struct {
	vehicles     int
	reporting    int
	occupancySum float64
	delaySum     int
}

func (s routeStats) avgOccupancy() float64 {
	if s.reporting == 0 {
		return 0
	}
	return s.occupancySum / float64(s.reporting)
}

func (s routeStats) avgDelay() int {
	if s.reporting == 0 {
		return 0
	}
	return s.delaySum / s.reporting
}

// Generate computes insights for date from the current vehicles. Stale vehicles are left
// out of the heatmap and averages but are suggested for a location check.
func Generate(date string, vehicles []live.Vehicle, table *routes.Table, now time.Time) Insights {
	stats := map[string]*routeStats{}
	for _, r := range table.Routes() {
		stats[r.ID] = &routeStats{}
	}

	ins := Insights{
		Date:        date,
		GeneratedAt: now.UnixMilli(),
		Heatmap:     []HeatPoint{},
		Forecasts:   []Forecast{},
		Suggestions: []Suggestion{},
	}

	for _, v := range vehicles {
		st, ok := stats[v.RouteID]
		if !ok {
			st = &routeStats{}
			stats[v.RouteID] = st
		}
		st.vehicles++
		if v.Stale {
			ins.Suggestions = append(ins.Suggestions, Suggestion{
				Kind:      KindStaleVehicle,
				Priority:  PriorityLow,
				RouteID:   v.RouteID,
				VehicleID: v.ID,
				Message:   fmt.Sprintf("Vehicle %s has not reported for over 5 minutes; request its location.", v.ID),
			})
			continue
		}
		st.reporting++
		st.occupancySum += v.OccupancyPercent
		st.delaySum += v.PredictedDelaySeconds
		ins.Heatmap = append(ins.Heatmap, HeatPoint{
			Lat:    v.Latitude,
			Lon:    v.Longitude,
			Weight: math.Round(v.OccupancyPercent) / 100,
		})
	}

	for _, r := range table.Routes() {
		st := stats[r.ID]
		ins.Forecasts = append(ins.Forecasts, forecast(r, *st, now))
		ins.Suggestions = append(ins.Suggestions, routeSuggestions(r, *st)...)
	}

	sort.SliceStable(ins.Suggestions, func(i, j int) bool {
		a, b := ins.Suggestions[i], ins.Suggestions[j]
		if priorityRank[a.Priority] != priorityRank[b.Priority] {
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		}
		if a.RouteID != b.RouteID {
			return a.RouteID < b.RouteID
		}
		return a.VehicleID < b.VehicleID
	})
	return ins
}

// forecast spreads route capacity over service hours at the expected load, scaled by how
// loaded the route is right now compared with what is expected at this hour.
func forecast(r routes.Route, st routeStats, now time.Time) Forecast {
	buses := st.vehicles
	if buses == 0 {
		buses = r.TripFrequency
	}
	ratio := 1.0
	if st.reporting > 0 {
		expectedNow := loadAt(now) * 100
		ratio = math.Max(minObservedRatio, math.Min(maxObservedRatio, st.avgOccupancy()/expectedNow))
	}

	f := Forecast{RouteID: r.ID, RouteName: r.Name, Hourly: make([]HourDemand, 0, serviceEndHour-serviceStartHour)}
	for h := serviceStartHour; h < serviceEndHour; h++ {
		at := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, now.Location())
		load := math.Min(1, loadAt(at)*ratio)
		f.Hourly = append(f.Hourly, HourDemand{
			Hour:       h,
			Passengers: int(math.Round(float64(r.Capacity*buses) * load)),
			Peak:       sim.IsPeakHour(at),
		})
	}
	return f
}

func loadAt(t time.Time) float64 {
	if sim.IsPeakHour(t) {
		return peakLoad
	}
	return offPeakLoad
}

func routeSuggestions(r routes.Route, st routeStats) []Suggestion {
	if st.reporting == 0 {
		return nil
	}
	var out []Suggestion
	occ := st.avgOccupancy()
	switch {
	case occ >= crowdedAtLeast:
		out = append(out, Suggestion{
			Kind:     KindCrowdedRoute,
			Priority: PriorityHigh,
			RouteID:  r.ID,
			Message:  fmt.Sprintf("Route %s is running at %.0f%% average occupancy; add a bus from %s depot.", r.ID, occ, depotName(r)),
		})
	case occ < underusedBelow:
		out = append(out, Suggestion{
			Kind:     KindUnderusedRoute,
			Priority: PriorityLow,
			RouteID:  r.ID,
			Message:  fmt.Sprintf("Route %s is at %.0f%% average occupancy; consider reducing frequency.", r.ID, occ),
		})
	}
	if d := st.avgDelay(); d >= delayedAtLeast {
		out = append(out, Suggestion{
			Kind:     KindDelayedRoute,
			Priority: PriorityMedium,
			RouteID:  r.ID,
			Message:  fmt.Sprintf("Route %s is averaging %d minutes late; consider a diversion around the congestion zone.", r.ID, d/60),
		})
	}
	return out
}

func depotName(r routes.Route) string {
	if r.Depot == "" {
		return "the nearest"
	}
	return r.Depot
}

// EnsureForDay returns the stored insights for date, generating and storing them first if
// there are none. created reports whether this call wrote them.
func EnsureForDay(ctx context.Context, s store.Store, date string, vehicles []live.Vehicle, table *routes.Table, now time.Time, logger *slog.Logger) (ins Insights, created bool, err error) {
	if date == "" {
		return Insights{}, false, fmt.Errorf("insights: date is required")
	}
	if err := utils.ValidateDate(date); err != nil {
		return Insights{}, false, fmt.Errorf("insights: %w", err)
	}
	path := store.Join(store.Insights, date)

	existing, found, err := store.GetRecord[Insights](ctx, s, path)
	if err != nil {
		return Insights{}, false, err
	}
	if found {
		return existing, false, nil
	}

	ins = Generate(date, vehicles, table, now)
	if err := s.Set(ctx, path, ins); err != nil {
		logging.LogWriteFailure(logging.Component(logger, "insights"), path, err)
		return ins, false, fmt.Errorf("save insights: %w", err)
	}
	logging.LogOperation(logging.Component(logger, "insights"), "insights_generated",
		slog.String("date", date),
		slog.Int("suggestions", len(ins.Suggestions)))
	return ins, true, nil
}
