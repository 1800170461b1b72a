package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pluginhub/pluginhub/internal/middleware"
)

// maxBodyBytes caps every JSON request body the API decodes
const maxBodyBytes = 1 << 20

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func sendError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	middleware.WriteError(w, r, status, code, message, details)
}

// decodeJSON decodes the request body into T, rejecting unknown fields and
// oversized bodies. On failure the error response is already written.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var input T

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body exceeds 1 MiB", nil)
			return input, false
		}
		sendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", err.Error())
		return input, false
	}
	return input, true
}
