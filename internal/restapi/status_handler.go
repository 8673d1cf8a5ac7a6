package restapi

import (
	"net/http"

	"controlroom.busops.org/internal/gtfs"
	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/sim"
)

type statusEntry struct {
	Mode       string             `json:"mode"`
	Store      string             `json:"store"`
	Routes     int                `json:"routes"`
	Feed       live.Status        `json:"feed"`
	Simulation *sim.Status        `json:"simulation,omitempty"`
	Bridge     *gtfs.BridgeStatus `json:"bridge,omitempty"`
}

func (api *RestAPI) statusHandler(w http.ResponseWriter, r *http.Request) {
	entry := statusEntry{
		Mode:   string(api.Config.Mode),
		Store:  string(api.Config.StoreBackend),
		Routes: api.Routes.Len(),
		Feed:   api.Feed.Status(),
	}
	if api.Simulator != nil {
		st := api.Simulator.Status()
		entry.Simulation = &st
	}
	if api.Bridge != nil {
		st := api.Bridge.Status()
		entry.Bridge = &st
	}
	api.sendOK(w, r, map[string]interface{}{"entry": entry})
}
