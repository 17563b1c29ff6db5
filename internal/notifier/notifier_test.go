package notifier_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/notifier"
)

type fakeQueue struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (f *fakeQueue) Enqueue(a domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeQueue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newNotifier(q notifier.Enqueuer, clock *fakeClock) *notifier.Notifier {
	return notifier.New(q, notifier.Options{
		Cooldown:  time.Minute,
		TargetURL: "https://example.test/heroes",
		Now:       clock.Now,
	}, zap.NewNop(), notifier.Hooks{})
}

func TestNotifier_Cooldown(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		gap       time.Duration
		wantFired int
	}{
		{"within window", 30 * time.Second, 1},
		{"exactly at window edge", time.Minute, 1},
		{"after window", time.Minute + time.Millisecond, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQueue{}
			clock := &fakeClock{now: start}
			n := newNotifier(q, clock)

			if !n.Notify(ctx, domain.SourcePoll, "first", 0) {
				t.Fatal("first notification must fire")
			}
			clock.Advance(tc.gap)
			n.Notify(ctx, domain.SourceStream, "second", 1)

			if q.count() != tc.wantFired {
				t.Fatalf("expected %d alerts, got %d", tc.wantFired, q.count())
			}
		})
	}
}

func TestNotifier_AlertFields(t *testing.T) {
	q := &fakeQueue{}
	clock := &fakeClock{now: time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)}
	n := newNotifier(q, clock)

	n.Notify(context.Background(), domain.SourceStream, "You have new pending orders", 3)

	a := q.alerts[0]
	if a.ID == "" {
		t.Fatal("expected an alert id")
	}
	if a.Source != domain.SourceStream || a.OrderCount != 3 || a.Message != "You have new pending orders" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if a.TargetURL != "https://example.test/heroes" {
		t.Fatalf("unexpected target url %q", a.TargetURL)
	}
	if !n.LastFired().Equal(clock.Now()) {
		t.Fatalf("expected last fired %v, got %v", clock.Now(), n.LastFired())
	}
}

// TestNotifier_ConcurrentCallersFireOnce verifies the check-and-set is atomic:
// many simultaneous qualifying events produce exactly one alert.
func TestNotifier_ConcurrentCallersFireOnce(t *testing.T) {
	q := &fakeQueue{}
	clock := &fakeClock{now: time.Now()}
	n := newNotifier(q, clock)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := domain.SourcePoll
			if i%2 == 0 {
				src = domain.SourceStream
			}
			n.Notify(context.Background(), src, "m", 1)
		}(i)
	}
	wg.Wait()

	if q.count() != 1 {
		t.Fatalf("expected exactly one alert, got %d", q.count())
	}
}

func TestNotifier_QueueFullKeepsCooldown(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	q := &fakeQueue{err: domain.ErrQueueFull}
	clock := &fakeClock{now: time.Now()}

	var dropped int
	n := notifier.New(q, notifier.Options{Cooldown: time.Minute, Now: clock.Now}, zap.New(core), notifier.Hooks{
		OnDropped: func(domain.Source) { dropped++ },
	})

	if !n.Notify(context.Background(), domain.SourcePoll, "m", 0) {
		t.Fatal("expected the alert to be accepted")
	}
	if dropped != 1 {
		t.Fatalf("expected one dropped alert, got %d", dropped)
	}
	if logs.FilterMessage("alert dropped").Len() != 1 {
		t.Fatal("expected a warning about the dropped alert")
	}

	q.err = nil
	clock.Advance(time.Second)
	if n.Notify(context.Background(), domain.SourcePoll, "m", 0) {
		t.Fatal("expected the cooldown to still apply after a dropped alert")
	}
}

func TestNotifier_Hooks(t *testing.T) {
	q := &fakeQueue{}
	clock := &fakeClock{now: time.Now()}

	var fired, suppressed int
	n := notifier.New(q, notifier.Options{Cooldown: time.Minute, Now: clock.Now}, zap.NewNop(), notifier.Hooks{
		OnFired:      func(domain.Source) { fired++ },
		OnSuppressed: func(domain.Source) { suppressed++ },
	})

	n.Notify(context.Background(), domain.SourcePoll, "a", 0)
	n.Notify(context.Background(), domain.SourcePoll, "b", 0)
	n.Notify(context.Background(), domain.SourceStream, "c", 2)

	if fired != 1 || suppressed != 2 {
		t.Fatalf("expected fired=1 suppressed=2, got fired=%d suppressed=%d", fired, suppressed)
	}
}
