package restapi

import (
	"net/http"

	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/utils"
)

func (api *RestAPI) routesHandler(w http.ResponseWriter, r *http.Request) {
	list := make([]models.Route, 0, api.Routes.Len())
	for _, route := range api.Routes.Routes() {
		list = append(list, route.Model())
	}
	api.sendResponse(w, r, models.NewListResponse(list, models.NewEmptyReferences()))
}

func (api *RestAPI) routeHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	route, ok := api.Routes.Route(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(route.Model(), models.NewEmptyReferences()))
}
