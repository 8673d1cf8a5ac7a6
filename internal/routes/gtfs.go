package routes

import (
	"sort"
	"strings"

	"github.com/jamespfennell/gtfs"
)

// Defaults fills the attributes a GTFS feed does not carry.
type Defaults struct {
	Capacity      int
	TripFrequency int
}

// FromGTFS builds routes from a static GTFS feed. Each route takes its stop sequence from
// the scheduled trip with the most stop times. Routes that end up with fewer than two
// located stops are skipped and reported by id.
func FromGTFS(static *gtfs.Static, defaults Defaults) (routes []Route, skipped []string) {
	longest := make(map[string]*gtfs.ScheduledTrip)
	tripCount := make(map[string]int)
	for i := range static.Trips {
		trip := &static.Trips[i]
		if trip.Route == nil {
			continue
		}
		id := trip.Route.Id
		tripCount[id]++
		if cur, ok := longest[id]; !ok || len(trip.StopTimes) > len(cur.StopTimes) {
			longest[id] = trip
		}
	}

	for _, r := range static.Routes {
		trip, ok := longest[r.Id]
		if !ok {
			skipped = append(skipped, r.Id)
			continue
		}
		stopTimes := append([]gtfs.ScheduledStopTime(nil), trip.StopTimes...)
		sort.Slice(stopTimes, func(i, j int) bool { return stopTimes[i].StopSequence < stopTimes[j].StopSequence })

		var stops []Stop
		for _, st := range stopTimes {
			if st.Stop == nil || st.Stop.Latitude == nil || st.Stop.Longitude == nil {
				continue
			}
			stops = append(stops, Stop{
				Name:      st.Stop.Name,
				Latitude:  *st.Stop.Latitude,
				Longitude: *st.Stop.Longitude,
			})
		}
		if len(stops) < 2 {
			skipped = append(skipped, r.Id)
			continue
		}

		route := Route{
			ID:            sanitizeID(r.Id),
			Name:          routeName(r),
			Stops:         stops,
			Capacity:      defaults.Capacity,
			TripFrequency: defaults.TripFrequency,
		}
		if r.Agency != nil {
			route.Depot = r.Agency.Name
		}
		if r.Color != "" {
			route.Color = "#" + strings.TrimPrefix(r.Color, "#")
		}
		if route.TripFrequency == 0 {
			route.TripFrequency = tripFrequency(tripCount[r.Id])
		}
		routes = append(routes, route)
	}
	return routes, skipped
}

func routeName(r gtfs.Route) string {
	switch {
	case r.ShortName != "" && r.LongName != "":
		return r.ShortName + " " + r.LongName
	case r.LongName != "":
		return r.LongName
	case r.ShortName != "":
		return r.ShortName
	default:
		return r.Id
	}
}

// tripFrequency scales a daily scheduled trip count down to a handful of simulated buses.
func tripFrequency(dailyTrips int) int {
	n := dailyTrips / 20
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}

// sanitizeID maps GTFS ids onto the characters allowed in store paths.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
