package restapi

import (
	"net/http"

	"controlroom.busops.org/internal/incidents"
	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/utils"
)

func (api *RestAPI) incidentsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := incidents.Status(query.Get("status"))
	vehicleID := query.Get("vehicleId")
	openOnly, fieldErrors := utils.ParseBoolParam(query, "open", nil)
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	all, err := api.Incidents.List(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	list := make([]incidents.Incident, 0, len(all))
	for _, inc := range all {
		if status != "" && inc.Status != status {
			continue
		}
		if vehicleID != "" && inc.VehicleID != vehicleID {
			continue
		}
		if openOnly && !inc.Status.Unresolved() {
			continue
		}
		list = append(list, inc)
	}
	api.sendResponse(w, r, models.NewListResponse(list, models.NewEmptyReferences()))
}

func (api *RestAPI) createIncidentHandler(w http.ResponseWriter, r *http.Request) {
	var report incidents.Report
	if !api.decodeJSON(w, r, &report) {
		return
	}
	report.Description = utils.SanitizeInput(report.Description)

	inc, err := api.Incidents.Create(r.Context(), report)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, map[string]interface{}{"entry": inc})
}

func (api *RestAPI) incidentHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	inc, err := api.Incidents.Get(r.Context(), id)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(inc, models.NewEmptyReferences()))
}

type incidentAction struct {
	Actor      string `json:"actor"`
	Assignee   string `json:"assignee"`
	Resolution string `json:"resolution"`
}

// incidentActionHandler moves an incident forward: assign, start, resolve or close.
func (api *RestAPI) incidentActionHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	action := utils.ExtractIDFromParams(r, "action")

	var req incidentAction
	if !api.decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	var inc incidents.Incident
	var err error
	switch action {
	case "assign":
		inc, err = api.Incidents.Assign(ctx, id, utils.SanitizeInput(req.Assignee), req.Actor)
	case "start":
		inc, err = api.Incidents.Start(ctx, id, req.Actor)
	case "resolve":
		inc, err = api.Incidents.Resolve(ctx, id, req.Actor, utils.SanitizeInput(req.Resolution))
	case "close":
		inc, err = api.Incidents.Close(ctx, id, req.Actor)
	default:
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(inc, models.NewEmptyReferences()))
}
