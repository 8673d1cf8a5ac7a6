package restapi

import (
	"net/http"

	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/passes"
	"controlroom.busops.org/internal/utils"
)

func (api *RestAPI) passesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := api.Passes.List(r.Context(), passes.Status(r.URL.Query().Get("status")))
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewListResponse(list, models.NewEmptyReferences()))
}

func (api *RestAPI) applyPassHandler(w http.ResponseWriter, r *http.Request) {
	var application passes.Application
	if !api.decodeJSON(w, r, &application) {
		return
	}
	application.ApplicantName = utils.SanitizeInput(application.ApplicantName)
	application.Contact = utils.SanitizeInput(application.Contact)

	p, err := api.Passes.Apply(r.Context(), application)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, map[string]interface{}{"entry": p})
}

func (api *RestAPI) passHandler(w http.ResponseWriter, r *http.Request) {
	p, err := api.Passes.Get(r.Context(), utils.ExtractIDFromParams(r, "id"))
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(p, models.NewEmptyReferences()))
}

type passDecision struct {
	passes.Validity
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// passActionHandler records the one decision a pass gets: approve or reject.
func (api *RestAPI) passActionHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	action := utils.ExtractIDFromParams(r, "action")

	var req passDecision
	if !api.decodeJSON(w, r, &req) {
		return
	}

	var p passes.Pass
	var err error
	switch action {
	case "approve":
		p, err = api.Passes.Approve(r.Context(), id, req.Validity, req.Actor)
	case "reject":
		p, err = api.Passes.Reject(r.Context(), id, utils.SanitizeInput(req.Reason), req.Actor)
	default:
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(p, models.NewEmptyReferences()))
}
