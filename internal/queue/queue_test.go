package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/queue"
)

func alert(id string) domain.Alert {
	return domain.Alert{ID: id, Source: domain.SourcePoll, Message: "m"}
}

func TestAlertQueue_FIFO(t *testing.T) {
	q := queue.New(4)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(alert(id)); err != nil {
			t.Fatal(err)
		}
	}
	if q.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", q.Depth())
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue(ctx)
		if !ok || got.ID != want {
			t.Fatalf("expected %q, got %q (ok=%v)", want, got.ID, ok)
		}
	}
}

func TestAlertQueue_ErrQueueFull(t *testing.T) {
	q := queue.New(1)

	if err := q.Enqueue(alert("1")); err != nil {
		t.Fatalf("unexpected error on empty queue: %v", err)
	}
	if err := q.Enqueue(alert("2")); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

// TestAlertQueue_ContextCancellation verifies Dequeue returns (_, false)
// when the context is cancelled while blocking.
func TestAlertQueue_ContextCancellation(t *testing.T) {
	q := queue.New(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}

func TestAlertQueue_ConcurrentEnqueueDequeue(t *testing.T) {
	const producers = 4
	const perProducer = 50
	const total = producers * perProducer

	q := queue.New(total)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				_ = q.Enqueue(alert("x"))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		if _, ok := q.Dequeue(ctx); !ok {
			t.Fatalf("timeout: only received %d/%d alerts", i, total)
		}
	}
}
