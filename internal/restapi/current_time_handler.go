package restapi

import (
	"net/http"

	"controlroom.busops.org/internal/models"
)

func (api *RestAPI) currentTimeHandler(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewEntryResponse(models.NewCurrentTime(api.now()), models.NewEmptyReferences()))
}
