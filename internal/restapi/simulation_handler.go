package restapi

import (
	"errors"
	"net/http"
)

var errSimulatorDisabled = errors.New("simulator is not running in this mode")

func (api *RestAPI) requireSimulator(w http.ResponseWriter, r *http.Request) bool {
	if api.Simulator == nil {
		api.conflictResponse(w, r, errSimulatorDisabled)
		return false
	}
	return true
}

func (api *RestAPI) simulationStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !api.requireSimulator(w, r) {
		return
	}
	api.sendOK(w, r, map[string]interface{}{"entry": api.Simulator.Status()})
}

func (api *RestAPI) simulationStartHandler(w http.ResponseWriter, r *http.Request) {
	if !api.requireSimulator(w, r) {
		return
	}
	if err := api.Simulator.Start(r.Context()); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendOK(w, r, map[string]interface{}{"entry": api.Simulator.Status()})
}

func (api *RestAPI) simulationStopHandler(w http.ResponseWriter, r *http.Request) {
	if !api.requireSimulator(w, r) {
		return
	}
	api.Simulator.Stop()
	api.sendOK(w, r, map[string]interface{}{"entry": api.Simulator.Status()})
}

type speedRequest struct {
	Multiplier *float64 `json:"multiplier"`
}

// simulationSpeedHandler sets the speed multiplier. Values outside the allowed range are
// clamped and the applied value is returned.
func (api *RestAPI) simulationSpeedHandler(w http.ResponseWriter, r *http.Request) {
	if !api.requireSimulator(w, r) {
		return
	}
	var req speedRequest
	if !api.decodeJSON(w, r, &req) {
		return
	}
	if req.Multiplier == nil || *req.Multiplier <= 0 {
		api.validationErrorResponse(w, r, map[string][]string{
			"multiplier": {"multiplier must be a positive number"},
		})
		return
	}
	api.Simulator.SetSpeed(*req.Multiplier)
	api.sendOK(w, r, map[string]interface{}{"entry": api.Simulator.Status()})
}
