package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/notifier"
	"github.com/notifyhub/order-alerts/internal/poller"
	"github.com/notifyhub/order-alerts/internal/stream"
	"github.com/notifyhub/order-alerts/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	PollTicks       prometheus.Counter
	PollSkipped     *prometheus.CounterVec
	PollRequests    *prometheus.CounterVec
	PollLatency     prometheus.Histogram
	PollsInFlight   prometheus.Gauge
	StreamEvents    *prometheus.CounterVec
	StreamConnects  prometheus.Counter
	StreamDrops     *prometheus.CounterVec
	StreamConnected prometheus.Gauge
	Alerts          *prometheus.CounterVec
	SinkSteps       *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
	QueueDepth      prometheus.Gauge
}

// New registers all instruments with the given registerer. A private
// registry keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_ticks_total",
			Help: "Poll cycles started.",
		}),
		PollSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_skipped_total",
			Help: "Poll cycles that sent no request, by reason.",
		}, []string{"reason"}),
		PollRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_requests_total",
			Help: "Pending-orders requests, by outcome.",
		}, []string{"outcome"}),
		PollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poller_request_seconds",
			Help:    "Pending-orders request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		PollsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_in_flight",
			Help: "Pending-orders requests currently outstanding.",
		}),
		StreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_total",
			Help: "Server-sent events received, by outcome.",
		}, []string{"outcome"}),
		StreamConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_connects_total",
			Help: "Stream connections opened.",
		}),
		StreamDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_disconnects_total",
			Help: "Stream connections ended by the server or the network.",
		}, []string{"cause"}),
		StreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_connected",
			Help: "1 while the stream is open.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Alert requests, by source and result (fired, suppressed, dropped).",
		}, []string{"source", "result"}),
		SinkSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sink_steps_total",
			Help: "Sink capability calls, by step and outcome.",
		}, []string{"step", "outcome"}),
		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alert_delivery_seconds",
			Help:    "Time to run all sink steps for one alert.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Alerts waiting for a dispatch worker.",
		}),
	}

	reg.MustRegister(
		m.PollTicks,
		m.PollSkipped,
		m.PollRequests,
		m.PollLatency,
		m.PollsInFlight,
		m.StreamEvents,
		m.StreamConnects,
		m.StreamDrops,
		m.StreamConnected,
		m.Alerts,
		m.SinkSteps,
		m.DeliveryLatency,
		m.QueueDepth,
	)

	return m
}

func (m *Metrics) PollerHooks() poller.Hooks {
	return poller.Hooks{
		OnTick: m.PollTicks.Inc,
		OnSkipped: func(reason string) {
			m.PollSkipped.WithLabelValues(reason).Inc()
		},
		OnRequest: func(outcome string, latency time.Duration) {
			m.PollRequests.WithLabelValues(outcome).Inc()
			m.PollLatency.Observe(latency.Seconds())
		},
	}
}

func (m *Metrics) StreamHooks() stream.Hooks {
	return stream.Hooks{
		OnEvent: func(outcome string) {
			m.StreamEvents.WithLabelValues(outcome).Inc()
		},
		OnConnect: func() {
			m.StreamConnects.Inc()
			m.StreamConnected.Set(1)
		},
		OnDisconnect: func(err error) {
			cause := "server_closed"
			if err != nil {
				cause = "error"
			}
			m.StreamDrops.WithLabelValues(cause).Inc()
			m.StreamConnected.Set(0)
		},
	}
}

func (m *Metrics) NotifierHooks() notifier.Hooks {
	result := func(r string) func(domain.Source) {
		return func(s domain.Source) { m.Alerts.WithLabelValues(string(s), r).Inc() }
	}
	return notifier.Hooks{
		OnFired:      result("fired"),
		OnSuppressed: result("suppressed"),
		OnDropped:    result("dropped"),
	}
}

func (m *Metrics) WorkerHooks() worker.Hooks {
	return worker.Hooks{
		OnStep: func(step, outcome string) {
			m.SinkSteps.WithLabelValues(step, outcome).Inc()
		},
		OnDelivered: func(source domain.Source, latency time.Duration) {
			m.DeliveryLatency.WithLabelValues(string(source)).Observe(latency.Seconds())
		},
	}
}
