package models

// RouteReference is the compact route description attached to vehicle and marker responses.
type RouteReference struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Depot    string `json:"depot"`
	Color    string `json:"color,omitempty"`
	Capacity int    `json:"capacity"`
}

// Route is the full route entry served by the routes endpoints.
type Route struct {
	RouteReference
	TripFrequency int         `json:"tripFrequency"`
	LengthKm      float64     `json:"lengthKm"`
	Polyline      string      `json:"polyline"`
	Stops         []RouteStop `json:"stops"`
}

type RouteStop struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
}
