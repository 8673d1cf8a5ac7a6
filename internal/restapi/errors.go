package restapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"controlroom.busops.org/internal/incidents"
	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/passes"
	"controlroom.busops.org/internal/payments"
	"controlroom.busops.org/internal/sim"
	"controlroom.busops.org/internal/store"
)

func (api *RestAPI) writeError(w http.ResponseWriter, status int, text string) {
	setJSONResponseType(&w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.NewErrorResponse(status, text)); err != nil {
		api.Logger.Error("failed to encode error response", "error", err, "status", status)
	}
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	api.writeError(w, http.StatusInternalServerError, "internal server error")
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	response := struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}{
		FieldErrors: fieldErrors,
	}

	setJSONResponseType(&w)
	w.WriteHeader(http.StatusBadRequest)
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		api.Logger.Error("failed to encode validation error response", "error", err)
	}
}

// conflictResponse reports a request that is valid but not allowed in the current state.
func (api *RestAPI) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.writeError(w, http.StatusConflict, err.Error())
}

// errorResponse maps service errors onto HTTP statuses.
func (api *RestAPI) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		api.validationErrorResponse(w, r, validationErr.FieldErrors)
	case errors.Is(err, store.ErrInvalidPath):
		api.validationErrorResponse(w, r, map[string][]string{"id": {"id contains invalid characters"}})
	case errors.Is(err, incidents.ErrNotFound),
		errors.Is(err, incidents.ErrUnknownVehicle),
		errors.Is(err, passes.ErrNotFound),
		errors.Is(err, payments.ErrNotFound),
		errors.Is(err, payments.ErrDisputeNotFound),
		errors.Is(err, sim.ErrUnknownVehicle):
		api.sendNotFound(w, r)
	case errors.Is(err, incidents.ErrInvalidTransition),
		errors.Is(err, passes.ErrAlreadyDecided),
		errors.Is(err, payments.ErrAlreadyRefunded),
		errors.Is(err, payments.ErrInvalidTransition):
		api.conflictResponse(w, r, err)
	default:
		api.serverErrorResponse(w, r, err)
	}
}
