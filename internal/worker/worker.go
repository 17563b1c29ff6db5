package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/queue"
	"github.com/notifyhub/order-alerts/internal/sink"
)

// Delivery steps, in the order they run.
const (
	StepShow    = "show"
	StepVibrate = "vibrate"
	StepSound   = "sound"
)

// DeliverTimeout bounds the steps of one alert. Delivery is detached from
// the worker's ctx, so an alert dequeued before shutdown still plays out.
const DeliverTimeout = 30 * time.Second

// Step outcomes reported through Hooks.OnStep.
const (
	StepOK          = "ok"
	StepUnsupported = "unsupported"
	StepFailed      = "failed"
)

// Worker is a single goroutine that pulls alerts off the queue and plays
// them through the sink: show, vibrate, then sound. Each step is
// best-effort; a failure is logged and the next step still runs.
type Worker struct {
	id      int
	q       *queue.AlertQueue
	sink    sink.Sink
	vibrate time.Duration
	logger  *zap.Logger

	onStep      func(step, outcome string)
	onDelivered func(source domain.Source, latency time.Duration)
}

// NewWorker constructs a worker. Nil hooks are no-ops.
func NewWorker(
	id int,
	q *queue.AlertQueue,
	s sink.Sink,
	vibrate time.Duration,
	logger *zap.Logger,
	hooks Hooks,
) *Worker {
	if hooks.OnStep == nil {
		hooks.OnStep = func(string, string) {}
	}
	if hooks.OnDelivered == nil {
		hooks.OnDelivered = func(domain.Source, time.Duration) {}
	}
	return &Worker{
		id: id, q: q, sink: s, vibrate: vibrate, logger: logger,
		onStep: hooks.OnStep, onDelivered: hooks.OnDelivered,
	}
}

// Run blocks until ctx is cancelled, delivering one alert per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		a, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping")
			return
		}
		w.deliver(ctx, a)
	}
}

func (w *Worker) deliver(ctx context.Context, a domain.Alert) {
	log := w.logger.With(
		zap.String("alert_id", a.ID),
		zap.String("source", string(a.Source)),
	)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DeliverTimeout)
	defer cancel()

	w.step(ctx, log, StepShow, func(ctx context.Context) error { return w.sink.Show(ctx, a) })
	w.step(ctx, log, StepVibrate, func(ctx context.Context) error { return w.sink.Vibrate(ctx, w.vibrate) })
	w.step(ctx, log, StepSound, w.sink.PlayDefaultSound)

	elapsed := time.Since(start)
	w.onDelivered(a.Source, elapsed)
	log.Debug("alert delivered", zap.Duration("latency", elapsed))
}

func (w *Worker) step(ctx context.Context, log *zap.Logger, name string, call func(context.Context) error) {
	err := call(ctx)
	switch {
	case err == nil:
		w.onStep(name, StepOK)
	case errors.Is(err, domain.ErrUnsupported):
		w.onStep(name, StepUnsupported)
		log.Debug("sink capability unavailable", zap.String("step", name))
	default:
		w.onStep(name, StepFailed)
		log.Warn("sink step failed", zap.String("step", name), zap.Error(err))
	}
}
