package restapi

import (
	"net/http"

	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/signals"
	"controlroom.busops.org/internal/utils"
)

type messageRequest struct {
	Text     string           `json:"text"`
	Priority signals.Priority `json:"priority"`
	From     string           `json:"from"`
}

// knownVehicle answers 404 for vehicles the live feed has never reported.
func (api *RestAPI) knownVehicle(w http.ResponseWriter, r *http.Request, id string) bool {
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return false
	}
	if _, ok := api.Feed.Vehicle(id); !ok {
		api.sendNotFound(w, r)
		return false
	}
	return true
}

func (api *RestAPI) messagesHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}
	list, err := api.Signals.Messages(r.Context(), id)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewListResponse(list, models.NewEmptyReferences()))
}

func (api *RestAPI) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if !api.knownVehicle(w, r, id) {
		return
	}
	var req messageRequest
	if !api.decodeJSON(w, r, &req) {
		return
	}
	msg, err := api.Signals.SendMessage(r.Context(), id, req.Text, req.Priority, req.From)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, map[string]interface{}{"entry": msg})
}

func (api *RestAPI) locationRequestHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if !api.knownVehicle(w, r, id) {
		return
	}
	var req struct {
		From string `json:"from"`
	}
	if !api.decodeJSON(w, r, &req) {
		return
	}
	lr, err := api.Signals.RequestLocation(r.Context(), id, req.From)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, map[string]interface{}{"entry": lr})
}
