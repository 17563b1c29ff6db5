package queue

import (
	"context"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// AlertQueue is a bounded FIFO between the notifier and the dispatch
// workers. The notifier must never block on slow sinks, so Enqueue fails
// fast with ErrQueueFull instead of waiting.
type AlertQueue struct {
	ch chan domain.Alert
}

func New(size int) *AlertQueue {
	return &AlertQueue{ch: make(chan domain.Alert, size)}
}

// Enqueue places an alert on the queue without blocking.
func (q *AlertQueue) Enqueue(a domain.Alert) error {
	select {
	case q.ch <- a:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an alert is available or ctx is cancelled.
// Returns (Alert{}, false) on cancellation.
func (q *AlertQueue) Dequeue(ctx context.Context) (domain.Alert, bool) {
	select {
	case a := <-q.ch:
		return a, true
	case <-ctx.Done():
		return domain.Alert{}, false
	}
}

// Depth returns the number of alerts waiting for a worker.
func (q *AlertQueue) Depth() int {
	return len(q.ch)
}
