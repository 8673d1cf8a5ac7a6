package restapi

import (
	"sort"

	"controlroom.busops.org/internal/models"
)

// routeReferences builds the references block for the given route ids. Unknown ids are
// left out.
func (api *RestAPI) routeReferences(routeIDs map[string]bool) models.ReferencesModel {
	references := models.NewEmptyReferences()
	ids := make([]string, 0, len(routeIDs))
	for id := range routeIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if route, ok := api.Routes.Route(id); ok {
			references.Routes = append(references.Routes, route.Reference())
		}
	}
	return references
}
