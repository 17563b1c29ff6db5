package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/config"
	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/queue"
	"github.com/notifyhub/order-alerts/internal/sink"
)

// Hooks carries the metric callback functions injected by main.
type Hooks struct {
	OnStep      func(step, outcome string)
	OnDelivered func(source domain.Source, latency time.Duration)
}

// Pool manages the lifecycle of the dispatch workers. They share one queue;
// with a single worker alerts are delivered in the order they were fired.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(
	cfg *config.Config,
	q *queue.AlertQueue,
	s sink.Sink,
	logger *zap.Logger,
	hooks Hooks,
) *Pool {
	workers := make([]*Worker, cfg.DispatchWorkers)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, s, cfg.VibrateDuration,
			logger.With(zap.Int("worker_id", i)),
			hooks,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines. Cancelling ctx shuts the pool
// down; an alert already dequeued still runs its steps, bounded by
// DeliverTimeout.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
func (p *Pool) Wait() {
	p.wg.Wait()
}
