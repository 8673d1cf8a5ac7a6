package routes

import (
	"fmt"

	"controlroom.busops.org/internal/appconf"
)

// Table is the loaded route set. It is never mutated after construction.
type Table struct {
	routes         []Route
	byID           map[string]int
	congestionZone appconf.BoundingBox
}

// NewTable validates routes and copies them into a table. Routes with fewer than two stops
// are rejected here so that interpolation never sees them.
func NewTable(routes []Route, congestionZone appconf.BoundingBox) (*Table, error) {
	t := &Table{
		routes:         make([]Route, 0, len(routes)),
		byID:           make(map[string]int, len(routes)),
		congestionZone: congestionZone,
	}
	for _, r := range routes {
		r.Stops = append([]Stop(nil), r.Stops...)
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoute, r.ID)
		}
		t.byID[r.ID] = len(t.routes)
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// Route looks a route up by id.
func (t *Table) Route(id string) (Route, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Route{}, false
	}
	return t.routes[i], true
}

// Routes returns the routes in load order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

func (t *Table) Len() int {
	return len(t.routes)
}

// CongestionZone is the area where the simulator models heavy traffic.
func (t *Table) CongestionZone() appconf.BoundingBox {
	return t.congestionZone
}

// WithCongestionZone returns a copy of the table using a different congestion zone.
func (t *Table) WithCongestionZone(zone appconf.BoundingBox) *Table {
	clone := *t
	clone.congestionZone = zone
	return &clone
}

// Depots lists the distinct depots in load order.
func (t *Table) Depots() []string {
	seen := make(map[string]bool)
	var depots []string
	for _, r := range t.routes {
		if r.Depot != "" && !seen[r.Depot] {
			seen[r.Depot] = true
			depots = append(depots, r.Depot)
		}
	}
	return depots
}
