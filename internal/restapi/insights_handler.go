package restapi

import (
	"net/http"
	"time"

	"controlroom.busops.org/internal/insights"
	"controlroom.busops.org/internal/utils"
)

// insightsHandler returns the advisory insights for a day, generating them from the live
// fleet on first request. "today" is accepted in place of a date.
func (api *RestAPI) insightsHandler(w http.ResponseWriter, r *http.Request) {
	now := api.now()
	dateParam := utils.ExtractIDFromParams(r, "date")
	if dateParam == "today" {
		dateParam = ""
	}
	date, fieldErrors, ok := utils.ParseDateParameter(dateParam, time.Local)
	if !ok {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}
	if dateParam == "" {
		date = now.In(time.Local).Format("2006-01-02")
	}

	ins, created, err := insights.EnsureForDay(r.Context(), api.Store, date, api.Feed.Vehicles(), api.Routes, now, api.Logger)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendOK(w, r, map[string]interface{}{
		"entry":     ins,
		"generated": created,
	})
}
