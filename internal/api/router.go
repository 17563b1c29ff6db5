package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/api/handler"
	apimw "github.com/notifyhub/order-alerts/internal/api/middleware"
	"github.com/notifyhub/order-alerts/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every admin route.
func NewRouter(
	svc *service.ControlService,
	reg prometheus.Gatherer,
	started time.Time,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	hh := handler.NewHealthHandler(started)
	sh := handler.NewStatusHandler(svc)
	ch := handler.NewControlHandler(svc, logger)
	ah := handler.NewAlertHandler(svc, logger)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", sh.GetStatus)
		r.Get("/alerts", ah.List)
		r.Put("/cookie", ch.UpdateCookie)

		r.Route("/poller", func(r chi.Router) {
			r.Post("/start", ch.StartPoller)
			r.Post("/stop", ch.StopPoller)
			r.Post("/poll", ch.PollNow)
		})
		r.Route("/stream", func(r chi.Router) {
			r.Post("/connect", ch.ConnectStream)
			r.Post("/close", ch.CloseStream)
		})
	})

	return r
}
