package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses; anything unmatched
// is a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, appErrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, appErrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, appErrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, appErrors.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, appErrors.ErrAlreadyInProgress):
		status = http.StatusConflict
	case errors.Is(err, appErrors.ErrNoRecipients):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
