package restapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/markers"
	"controlroom.busops.org/internal/models"
)

func (api *RestAPI) markersHandler(w http.ResponseWriter, r *http.Request) {
	filters, fieldErrors := markers.FiltersFromQuery(r.URL.Query())
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}
	list := markers.Markers(api.Feed.Vehicles(), filters)
	api.sendResponse(w, r, models.NewListResponse(list, models.NewEmptyReferences()))
}

// markerStreamHandler streams marker diffs for one client as server-sent events. The first
// event adds every marker that matches the filters; later events carry only what changed.
func (api *RestAPI) markerStreamHandler(w http.ResponseWriter, r *http.Request) {
	filters, fieldErrors := markers.FiltersFromQuery(r.URL.Query())
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.serverErrorResponse(w, r, fmt.Errorf("streaming unsupported by %T", w))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Only the newest vehicle list matters; a slow client skips intermediate ones.
	updates := make(chan []live.Vehicle, 1)
	unsubscribe := api.Feed.Subscribe(func(vehicles []live.Vehicle) {
		for {
			select {
			case updates <- vehicles:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	layer := markers.NewLayer(filters)
	keepAlive := time.NewTicker(api.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case vehicles := <-updates:
			diff := layer.Apply(vehicles)
			if diff.Empty() {
				continue
			}
			if err := writeEvent(w, "markers", diff); err != nil {
				api.Logger.Debug("marker stream closed", "error", err)
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}
