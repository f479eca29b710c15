// Package api exposes the HTTP surface of the inventory service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SE121-UIT/inventory-service/core/es"
	"github.com/SE121-UIT/inventory-service/core/inventory"
)

// resJSON is the reply envelope of every endpoint. The field names are a
// wire contract with the service's consumers.
type resJSON struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body resJSON) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, resJSON{StatusCode: status, Message: "Success", Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, resJSON{
		StatusCode: status,
		Message:    err.Error(),
		Error:      http.StatusText(status),
	})
}

// statusForError maps domain and store errors to HTTP statuses. Anything
// unmapped is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errValidation):
		return http.StatusBadRequest
	case errors.Is(err, es.ErrStreamNotFound),
		errors.Is(err, inventory.ErrInventoryNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, es.ErrStreamAlreadyExists),
		errors.Is(err, es.ErrConcurrencyConflict),
		errors.Is(err, inventory.ErrCreatedExistingProduct):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrProductNotEnough),
		errors.Is(err, inventory.ErrProductIsAlreadyDeleted):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
