package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/order-alerts/internal/api/middleware"
	"github.com/notifyhub/order-alerts/internal/service"
)

// ControlHandler starts and stops the poller and the stream on demand.
type ControlHandler struct {
	svc    *service.ControlService
	logger *zap.Logger
}

func NewControlHandler(svc *service.ControlService, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{svc: svc, logger: logger}
}

// StartPoller handles POST /api/v1/poller/start
func (h *ControlHandler) StartPoller(w http.ResponseWriter, r *http.Request) {
	h.svc.StartPoller()
	respondJSON(w, http.StatusAccepted, h.svc.Status())
}

// StopPoller handles POST /api/v1/poller/stop
func (h *ControlHandler) StopPoller(w http.ResponseWriter, r *http.Request) {
	h.svc.StopPoller()
	respondJSON(w, http.StatusOK, h.svc.Status())
}

// PollNow handles POST /api/v1/poller/poll
//
// Runs one check immediately. Backend failures are not reported; the
// response only says whether a check was attempted.
func (h *ControlHandler) PollNow(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.PollNow(r.Context()); err != nil {
		h.logger.Warn("manual poll failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "checked"})
}

// ConnectStream handles POST /api/v1/stream/connect?driver_id=
//
// driver_id is only a fallback; a driver id found in the cookie source
// wins.
func (h *ControlHandler) ConnectStream(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ConnectStream(r.URL.Query().Get("driver_id")); err != nil {
		h.logger.Warn("stream connect refused",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.svc.Status())
}

// CloseStream handles POST /api/v1/stream/close
func (h *ControlHandler) CloseStream(w http.ResponseWriter, r *http.Request) {
	h.svc.CloseStream()
	respondJSON(w, http.StatusOK, h.svc.Status())
}

type updateCookieRequest struct {
	Cookie string `json:"cookie"`
}

// UpdateCookie handles PUT /api/v1/cookie with body {"cookie": "..."}.
func (h *ControlHandler) UpdateCookie(w http.ResponseWriter, r *http.Request) {
	var req updateCookieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ok, err := h.svc.UpdateCookie(r.Context(), req.Cookie)
	if err != nil {
		h.logger.Warn("cookie update failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"driver_id_present": ok})
}
