package handler

import (
	"net/http"

	"github.com/notifyhub/order-alerts/internal/service"
)

// StatusHandler serves a human-readable JSON snapshot of the alert
// channels. Raw Prometheus metrics are available separately at /metrics.
type StatusHandler struct {
	svc *service.ControlService
}

func NewStatusHandler(svc *service.ControlService) *StatusHandler {
	return &StatusHandler{svc: svc}
}

// GetStatus handles GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Status())
}
