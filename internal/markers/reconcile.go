package markers

import (
	"sort"
	"sync"

	"controlroom.busops.org/internal/live"
)

// VisualState is how a marker is drawn.
type VisualState string

const (
	StateEmergency VisualState = "emergency"
	StateStale     VisualState = "stale"
	StateInactive  VisualState = "inactive"
	StateActive    VisualState = "active"
)

var stateColors = map[VisualState]string{
	StateEmergency: "red",
	StateStale:     "amber",
	StateInactive:  "grey",
	StateActive:    "green",
}

// StateOf picks the visual state. Emergency wins over everything, then stale, then inactive.
func StateOf(v live.Vehicle) VisualState {
	switch {
	case v.HasEmergency:
		return StateEmergency
	case v.Stale:
		return StateStale
	case !v.Active:
		return StateInactive
	default:
		return StateActive
	}
}

func (s VisualState) Color() string {
	return stateColors[s]
}

// Pulsing is true only for emergencies.
func (s VisualState) Pulsing() bool {
	return s == StateEmergency
}

// Marker is what the map draws for one vehicle.
type Marker struct {
	ID        string        `json:"id"`
	RouteID   string        `json:"routeId"`
	Latitude  float64       `json:"lat"`
	Longitude float64       `json:"lon"`
	Heading   float64       `json:"heading"`
	State     VisualState   `json:"state"`
	Color     string        `json:"color"`
	Pulsing   bool          `json:"pulsing"`
	Occupancy OccupancyBand `json:"occupancy"`
	Anomaly   bool          `json:"anomaly"`
}

func markerFor(v live.Vehicle) Marker {
	state := StateOf(v)
	return Marker{
		ID:        v.ID,
		RouteID:   v.RouteID,
		Latitude:  v.Latitude,
		Longitude: v.Longitude,
		Heading:   v.Heading,
		State:     state,
		Color:     state.Color(),
		Pulsing:   state.Pulsing(),
		Occupancy: BandOf(v.OccupancyPercent),
		Anomaly:   IsAnomaly(v),
	}
}

// Diff is what must change on the map. Result is the full marker set afterwards and is the
// prev argument of the next Reconcile.
type Diff struct {
	ToAdd    []Marker          `json:"toAdd"`
	ToUpdate []Marker          `json:"toUpdate"`
	ToRemove []string          `json:"toRemove"`
	Result   map[string]Marker `json:"-"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToRemove) == 0
}

// Reconcile filters vehicles and diffs the resulting markers against prev by vehicle id.
// Markers that exist on both sides are only reported when something drawn changed, so
// reconciling the result again with the same input yields an empty diff. All slices are
// sorted by id. prev is not modified.
func Reconcile(prev map[string]Marker, vehicles []live.Vehicle, filters Filters) Diff {
	d := Diff{
		ToAdd:    []Marker{},
		ToUpdate: []Marker{},
		ToRemove: []string{},
		Result:   make(map[string]Marker, len(vehicles)),
	}
	for _, v := range filters.Apply(vehicles) {
		m := markerFor(v)
		d.Result[m.ID] = m
		old, ok := prev[m.ID]
		switch {
		case !ok:
			d.ToAdd = append(d.ToAdd, m)
		case old != m:
			d.ToUpdate = append(d.ToUpdate, m)
		}
	}
	for id := range prev {
		if _, ok := d.Result[id]; !ok {
			d.ToRemove = append(d.ToRemove, id)
		}
	}

	byID := func(ms []Marker) func(i, j int) bool {
		return func(i, j int) bool { return ms[i].ID < ms[j].ID }
	}
	sort.Slice(d.ToAdd, byID(d.ToAdd))
	sort.Slice(d.ToUpdate, byID(d.ToUpdate))
	sort.Strings(d.ToRemove)
	return d
}

// Markers returns the filtered marker set sorted by id.
func Markers(vehicles []live.Vehicle, filters Filters) []Marker {
	return Reconcile(nil, vehicles, filters).ToAdd
}

// Layer is one client's map: the markers it shows and the filters it uses.
type Layer struct {
	mu      sync.Mutex
	filters Filters
	markers map[string]Marker
}

func NewLayer(filters Filters) *Layer {
	return &Layer{filters: filters, markers: map[string]Marker{}}
}

// Apply reconciles the layer against a new vehicle list.
func (l *Layer) Apply(vehicles []live.Vehicle) Diff {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := Reconcile(l.markers, vehicles, l.filters)
	l.markers = d.Result
	return d
}

// SetFilters swaps the filters and reconciles against vehicles.
func (l *Layer) SetFilters(filters Filters, vehicles []live.Vehicle) Diff {
	l.mu.Lock()
	l.filters = filters
	l.mu.Unlock()
	return l.Apply(vehicles)
}

func (l *Layer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.markers)
}
