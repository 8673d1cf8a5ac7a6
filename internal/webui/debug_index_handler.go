// Package webui serves a plain HTML dump of store collections for debugging.
package webui

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/store"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

// Collections are the dataType values the debug page accepts.
var Collections = []string{
	store.LiveTelemetry,
	store.Emergencies,
	store.Drivers,
	store.Vehicles,
	store.Passes,
	store.Payments,
	store.PaymentDisputes,
	store.Insights,
	store.Messages,
	store.LocationRequests,
}

type debugData struct {
	Title       string
	Pre         string
	Collections []string
}

type WebUI struct {
	store  store.Store
	logger *slog.Logger
}

func New(s store.Store, logger *slog.Logger) *WebUI {
	return &WebUI{store: s, logger: logging.Component(logger, "webui")}
}

func (webUI *WebUI) writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html")
	// The API-wide policy forbids inline styles.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none';")

	err := debugTemplate.Execute(w, debugData{
		Title:       title,
		Pre:         spew.Sdump(data),
		Collections: Collections,
	})
	if err != nil {
		logging.LogError(webUI.logger, "failed to render debug page", err)
	}
}

func (webUI *WebUI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	dataType := r.URL.Query().Get("dataType")

	known := false
	for _, c := range Collections {
		if c == dataType {
			known = true
			break
		}
	}
	if !known {
		index := map[string]interface{}{
			"error":       "Please use one of the following dataType values.",
			"collections": Collections,
		}
		// Persistent backends can also report what they hold.
		if lister, ok := webUI.store.(store.Lister); ok {
			infos, err := lister.Collections(r.Context())
			if err != nil {
				logging.LogError(webUI.logger, "failed to list stored collections", err)
			} else {
				index["stored"] = infos
			}
		}
		webUI.writeDebugData(w, "Choose a data type", index)
		return
	}

	snap, err := webUI.store.Get(r.Context(), dataType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var data interface{}
	if snap.Exists {
		if err := json.Unmarshal(snap.Value, &data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	webUI.writeDebugData(w, "Store - "+dataType, data)
}
