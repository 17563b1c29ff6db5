package poller_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/credential"
	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/poller"
)

type notifyCall struct {
	source  domain.Source
	message string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) Notify(_ context.Context, source domain.Source, message string, _ int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{source, message})
	return true
}

func (f *fakeNotifier) snapshot() []notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifyCall(nil), f.calls...)
}

type offlineGate struct{}

func (offlineGate) Online(context.Context) bool { return false }

// backend serves a fixed body and counts requests.
type backend struct {
	srv    *httptest.Server
	hits   atomic.Int32
	lastID atomic.Value
	status int
	body   string
}

func newBackend(t *testing.T, status int, body string) *backend {
	t.Helper()
	b := &backend{status: status, body: body}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		b.lastID.Store(r.URL.Query().Get("driver_id"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.status)
		_, _ = w.Write([]byte(b.body))
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newPoller(endpoint string, cookies credential.Source, n poller.Notifier, opts ...func(*poller.Options)) *poller.Poller {
	o := poller.Options{Endpoint: endpoint, Interval: 10 * time.Millisecond}
	for _, fn := range opts {
		fn(&o)
	}
	return poller.New(o, http.DefaultClient, cookies, n, zap.NewNop(), poller.Hooks{})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPoller_Poll_NoIdentifier(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"success":true,"message":"Pong"}`)
	n := &fakeNotifier{}
	p := newPoller(b.srv.URL, credential.NewStaticSource("session=1"), n)

	err := p.Poll(context.Background())
	if !errors.Is(err, domain.ErrNoIdentifier) {
		t.Fatalf("expected ErrNoIdentifier, got %v", err)
	}
	if b.hits.Load() != 0 {
		t.Fatalf("expected zero HTTP calls, got %d", b.hits.Load())
	}
	if len(n.snapshot()) != 0 {
		t.Fatal("expected no notifications")
	}
}

func TestPoller_Poll_Responses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls []string
	}{
		{"success with message", http.StatusOK, `{"success":true,"message":"Pong"}`, []string{"Pong"}},
		{"success default message", http.StatusOK, `{"success":true}`, []string{domain.DefaultPendingMessage}},
		{"success false", http.StatusOK, `{"success":false}`, nil},
		{"success missing", http.StatusOK, `{"message":"x"}`, nil},
		{"malformed body", http.StatusOK, `not json`, nil},
		{"server error", http.StatusInternalServerError, `{"success":true}`, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newBackend(t, tc.status, tc.body)
			n := &fakeNotifier{}
			p := newPoller(b.srv.URL, credential.NewStaticSource("a=b; driver_id=D42"), n)

			if err := p.Poll(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.hits.Load() != 1 {
				t.Fatalf("expected one HTTP call, got %d", b.hits.Load())
			}
			if got := b.lastID.Load(); got != "D42" {
				t.Fatalf("expected driver_id=D42, got %v", got)
			}

			calls := n.snapshot()
			if len(calls) != len(tc.wantCalls) {
				t.Fatalf("expected %d notifications, got %d", len(tc.wantCalls), len(calls))
			}
			for i, want := range tc.wantCalls {
				if calls[i].message != want {
					t.Fatalf("expected message %q, got %q", want, calls[i].message)
				}
			}
		})
	}
}

func TestPoller_Poll_TransportErrorSwallowed(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)
	url := b.srv.URL
	b.srv.Close()

	n := &fakeNotifier{}
	p := newPoller(url, credential.NewStaticSource("driver_id=1"), n)
	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("network failure must not surface, got %v", err)
	}
	if len(n.snapshot()) != 0 {
		t.Fatal("expected no notifications")
	}
}

func TestPoller_TicksNotifyPerSuccess(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"success":true,"message":"Pong"}`)
	n := &fakeNotifier{}
	p := newPoller(b.srv.URL, credential.NewStaticSource("driver_id=7"), n)

	p.Start(context.Background())
	waitFor(t, func() bool { return len(n.snapshot()) >= 2 })
	p.Stop()
	p.Wait()

	for _, c := range n.snapshot() {
		if c.source != domain.SourcePoll || c.message != "Pong" {
			t.Fatalf("unexpected notification %+v", c)
		}
	}
}

func TestPoller_TickWithoutIdentifierMakesNoCalls(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"success":true}`)
	n := &fakeNotifier{}

	var skipped atomic.Int32
	p := poller.New(poller.Options{Endpoint: b.srv.URL, Interval: 5 * time.Millisecond},
		http.DefaultClient, credential.NewStaticSource(""), n, zap.NewNop(), poller.Hooks{
			OnSkipped: func(reason string) {
				if reason == poller.SkipNoIdentifier {
					skipped.Add(1)
				}
			},
		})

	p.Start(context.Background())
	waitFor(t, func() bool { return skipped.Load() >= 3 })
	p.Stop()
	p.Wait()

	if b.hits.Load() != 0 {
		t.Fatalf("expected zero HTTP calls, got %d", b.hits.Load())
	}
	if len(n.snapshot()) != 0 {
		t.Fatal("expected no notifications")
	}
}

func TestPoller_OfflineGateSkipsTicks(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"success":true}`)
	n := &fakeNotifier{}

	var ticks atomic.Int32
	p := poller.New(poller.Options{Endpoint: b.srv.URL, Interval: 5 * time.Millisecond, Gate: offlineGate{}},
		http.DefaultClient, credential.NewStaticSource("driver_id=1"), n, zap.NewNop(), poller.Hooks{
			OnTick: func() { ticks.Add(1) },
		})

	p.Start(context.Background())
	waitFor(t, func() bool { return ticks.Load() >= 3 })
	p.Stop()
	p.Wait()

	if b.hits.Load() != 0 {
		t.Fatalf("expected zero HTTP calls while offline, got %d", b.hits.Load())
	}
}

func TestPoller_StartStopIdempotent(t *testing.T) {
	p := newPoller("http://127.0.0.1:1", credential.NewStaticSource(""), &fakeNotifier{},
		func(o *poller.Options) { o.Interval = time.Hour })

	if p.State() != poller.StateIdle {
		t.Fatalf("expected idle, got %s", p.State())
	}

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	if p.State() == poller.StateIdle {
		t.Fatal("expected poller to be active after Start")
	}

	p.Stop()
	p.Stop()
	if p.State() != poller.StateIdle {
		t.Fatalf("expected idle after Stop, got %s", p.State())
	}
	p.Wait()

	// restartable
	p.Start(ctx)
	if p.State() == poller.StateIdle {
		t.Fatal("expected poller to restart")
	}
	p.Stop()
	p.Wait()
}

// TestPoller_LateResponseAfterStop holds the backend response until after
// Stop and verifies it never produces a notification.
func TestPoller_LateResponseAfterStop(t *testing.T) {
	received := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case received <- struct{}{}:
		default:
		}
		<-release
		_, _ = w.Write([]byte(`{"success":true,"message":"late"}`))
	}))
	defer srv.Close()
	defer close(release)

	n := &fakeNotifier{}
	p := newPoller(srv.URL, credential.NewStaticSource("driver_id=1"), n,
		func(o *poller.Options) { o.Interval = time.Hour })

	p.Start(context.Background())
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received the request")
	}

	p.Stop()
	p.Wait()

	if len(n.snapshot()) != 0 {
		t.Fatalf("expected no notifications after stop, got %d", len(n.snapshot()))
	}
}

// TestPoller_StopBetweenReadAndNotify stops the poller after a successful
// response has been read but before it is turned into a notification. The
// body is already in hand, so only the generation check can drop it.
func TestPoller_StopBetweenReadAndNotify(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"success":true,"message":"late"}`)
	n := &fakeNotifier{}

	var (
		p    *poller.Poller
		once sync.Once
		read atomic.Int32
	)
	p = poller.New(poller.Options{Endpoint: b.srv.URL, Interval: time.Hour},
		http.DefaultClient, credential.NewStaticSource("driver_id=1"), n, zap.NewNop(), poller.Hooks{
			OnRequest: func(outcome string, _ time.Duration) {
				if outcome == poller.OutcomeOK {
					read.Add(1)
					once.Do(p.Stop)
				}
			},
		})

	p.Start(context.Background())
	waitFor(t, func() bool { return read.Load() == 1 })
	p.Wait()

	if len(n.snapshot()) != 0 {
		t.Fatalf("expected response read after stop to be dropped, got %d notifications", len(n.snapshot()))
	}
	if p.State() != poller.StateIdle {
		t.Fatalf("expected idle, got %s", p.State())
	}
}
