package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"controlroom.busops.org/internal/webui"
)

// SetRoutes registers every endpoint on router.
func (api *RestAPI) SetRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/api/current-time.json", api.currentTimeHandler)
	router.HandlerFunc(http.MethodGet, "/api/status", api.statusHandler)

	router.HandlerFunc(http.MethodGet, "/api/routes.json", api.routesHandler)
	router.HandlerFunc(http.MethodGet, "/api/routes/:id", api.routeHandler)

	router.HandlerFunc(http.MethodGet, "/api/vehicles.json", api.vehiclesHandler)
	router.HandlerFunc(http.MethodGet, "/api/vehicles/:id", api.vehicleHandler)
	router.HandlerFunc(http.MethodGet, "/api/vehicles/:id/messages", api.messagesHandler)
	router.HandlerFunc(http.MethodPost, "/api/vehicles/:id/messages", api.sendMessageHandler)
	router.HandlerFunc(http.MethodPost, "/api/vehicles/:id/location-request", api.locationRequestHandler)

	router.HandlerFunc(http.MethodGet, "/api/markers.json", api.markersHandler)
	router.HandlerFunc(http.MethodGet, "/api/markers/stream", api.markerStreamHandler)

	router.HandlerFunc(http.MethodGet, "/api/simulation", api.simulationStatusHandler)
	router.HandlerFunc(http.MethodPost, "/api/simulation/start", api.simulationStartHandler)
	router.HandlerFunc(http.MethodPost, "/api/simulation/stop", api.simulationStopHandler)
	router.HandlerFunc(http.MethodPut, "/api/simulation/speed", api.simulationSpeedHandler)

	router.HandlerFunc(http.MethodGet, "/api/incidents", api.incidentsHandler)
	router.HandlerFunc(http.MethodPost, "/api/incidents", api.createIncidentHandler)
	router.HandlerFunc(http.MethodGet, "/api/incidents/:id", api.incidentHandler)
	router.HandlerFunc(http.MethodPost, "/api/incidents/:id/:action", api.incidentActionHandler)

	router.HandlerFunc(http.MethodGet, "/api/insights/:date", api.insightsHandler)

	router.HandlerFunc(http.MethodGet, "/api/passes", api.passesHandler)
	router.HandlerFunc(http.MethodPost, "/api/passes", api.applyPassHandler)
	router.HandlerFunc(http.MethodGet, "/api/passes/:id", api.passHandler)
	router.HandlerFunc(http.MethodPost, "/api/passes/:id/:action", api.passActionHandler)

	router.HandlerFunc(http.MethodGet, "/api/payments", api.paymentsHandler)
	router.HandlerFunc(http.MethodPost, "/api/payments", api.recordPaymentHandler)
	router.HandlerFunc(http.MethodGet, "/api/payments/:id", api.paymentHandler)
	router.HandlerFunc(http.MethodPost, "/api/payments/:id/refund", api.refundPaymentHandler)
	router.HandlerFunc(http.MethodGet, "/api/payment-summary", api.paymentSummaryHandler)

	router.HandlerFunc(http.MethodGet, "/api/disputes", api.disputesHandler)
	router.HandlerFunc(http.MethodPost, "/api/disputes", api.openDisputeHandler)
	router.HandlerFunc(http.MethodGet, "/api/disputes/:id", api.disputeHandler)
	router.HandlerFunc(http.MethodPost, "/api/disputes/:id/:action", api.disputeActionHandler)

	router.Handler(http.MethodGet, "/debug/", webui.New(api.Store, api.Logger))

	router.NotFound = http.HandlerFunc(api.sendNotFound)
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		api.Logger.Error("handler panic", "panic", v, "path", r.URL.Path)
		api.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Handler returns the router wrapped in the middleware chain: request logging, security
// headers, rate limiting and compression, outermost first.
func (api *RestAPI) Handler() http.Handler {
	router := httprouter.New()
	api.SetRoutes(router)

	var handler http.Handler = router
	handler = CompressionMiddleware(handler)
	handler = api.rateLimiter.rateLimitHandler(handler)
	handler = securityHeaders(handler)
	handler = NewRequestLoggingMiddleware(api.Logger)(handler)
	return handler
}
