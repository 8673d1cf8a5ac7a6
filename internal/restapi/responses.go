package restapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"controlroom.busops.org/internal/models"
)

const maxBodyBytes = 1 << 20

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	setJSONResponseType(&w)
	if response.Code != 0 && response.Code != http.StatusOK {
		w.WriteHeader(response.Code)
	}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
}

func (api *RestAPI) sendOK(w http.ResponseWriter, r *http.Request, data interface{}) {
	api.sendResponse(w, r, models.NewOKResponse(data))
}

func (api *RestAPI) sendCreated(w http.ResponseWriter, r *http.Request, data interface{}) {
	api.sendResponse(w, r, models.NewResponse(http.StatusCreated, data, "Created"))
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.writeError(w, http.StatusNotFound, "resource not found")
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

// decodeJSON reads a JSON request body into v. An empty body leaves v unchanged. Malformed
// bodies are answered with a 400 and false is returned.
func (api *RestAPI) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		api.validationErrorResponse(w, r, map[string][]string{
			"body": {"Request body must be a JSON object."},
		})
		return false
	}
	return true
}
