package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/order-alerts/internal/api/middleware"
	"github.com/notifyhub/order-alerts/internal/service"
)

const maxAlertLimit = 500

// AlertHandler lists delivered alerts from the alert store.
type AlertHandler struct {
	svc    *service.ControlService
	logger *zap.Logger
}

func NewAlertHandler(svc *service.ControlService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/alerts?limit=
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAlertLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	alerts, err := h.svc.RecentAlerts(r.Context(), limit)
	if err != nil {
		h.logger.Warn("list alerts failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  alerts,
		"count": len(alerts),
	})
}
