package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/order-alerts/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoIdentifier):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnsupported):
		respondError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, domain.ErrStoreDisabled),
		errors.Is(err, domain.ErrQueueFull):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
