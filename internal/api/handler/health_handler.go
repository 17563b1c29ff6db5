package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness probe endpoint.
type HealthHandler struct {
	started time.Time
}

func NewHealthHandler(started time.Time) *HealthHandler {
	return &HealthHandler{started: started}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Truncate(time.Second).String(),
	})
}
