// Package stream keeps a server-sent-events connection to the backend and
// raises an alert whenever the server pushes a non-empty list of orders.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/notifyhub/order-alerts/internal/connectivity"
	"github.com/notifyhub/order-alerts/internal/credential"
	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/ratelimiter"
)

// State of the stream connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Event outcomes reported through Hooks.OnEvent.
const (
	EventOrders    = "orders"
	EventEmpty     = "empty"
	EventMalformed = "malformed"
)

// Notifier is the part of notifier.Notifier the listener needs.
type Notifier interface {
	Notify(ctx context.Context, source domain.Source, message string, orderCount int) bool
}

// Hooks carries metric callbacks injected by main. Nil fields are no-ops.
type Hooks struct {
	OnEvent      func(outcome string)
	OnConnect    func()
	OnDisconnect func(err error)
}

// ReconnectPolicy controls what happens when the stream ends. Delays grow
// exponentially from Min to Max and reset after a successful open.
type ReconnectPolicy struct {
	Enabled bool
	Min     time.Duration
	Max     time.Duration
}

// Options configures a Listener. Gate and Limiter are optional.
type Options struct {
	Endpoint  string
	Reconnect ReconnectPolicy
	Gate      connectivity.Gate
	Limiter   *ratelimiter.RouteLimiters
}

// Listener owns at most one live stream at a time.
type Listener struct {
	endpoint  string
	reconnect ReconnectPolicy
	gate      connectivity.Gate
	limiter   *ratelimiter.RouteLimiters
	// client must not carry a Timeout: it would cut the stream.
	client   *http.Client
	cookies  credential.Source
	notifier Notifier
	logger   *zap.Logger
	hooks    Hooks

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func New(
	opts Options,
	client *http.Client,
	cookies credential.Source,
	n Notifier,
	logger *zap.Logger,
	hooks Hooks,
) *Listener {
	if opts.Gate == nil {
		opts.Gate = connectivity.Always{}
	}
	if hooks.OnEvent == nil {
		hooks.OnEvent = func(string) {}
	}
	if hooks.OnConnect == nil {
		hooks.OnConnect = func() {}
	}
	if hooks.OnDisconnect == nil {
		hooks.OnDisconnect = func(error) {}
	}
	return &Listener{
		endpoint:  opts.Endpoint,
		reconnect: opts.Reconnect,
		gate:      opts.Gate,
		limiter:   opts.Limiter,
		client:    client,
		cookies:   cookies,
		notifier:  n,
		logger:    logger,
		hooks:     hooks,
	}
}

// Connect opens the stream for the identifier read fresh from the cookie
// source, falling back to hint. It returns false without connecting when
// neither yields an identifier. A previous stream is closed first.
func (l *Listener) Connect(ctx context.Context, hint string) bool {
	id := l.resolve(ctx, hint)
	if id == "" {
		l.logger.Info("no driver id available, stream not connected")
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.gen++
	l.cancel = cancel
	l.state = StateConnecting

	l.wg.Add(1)
	go l.run(ctx, l.gen, id, hint)
	return true
}

// Close cancels the active stream, if any. Events still in flight are
// discarded. Safe to call at any time.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.gen++
	l.state = StateDisconnected
	l.logger.Info("stream closed")
}

// Wait blocks until the stream goroutine has returned.
func (l *Listener) Wait() {
	l.wg.Wait()
}

// State returns the connection state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) resolve(ctx context.Context, hint string) string {
	id, ok, err := credential.ReadDriverID(ctx, l.cookies)
	if err != nil {
		l.logger.Warn("cookie source failed", zap.Error(err))
	}
	if ok {
		return id
	}
	return hint
}

func (l *Listener) run(ctx context.Context, gen uint64, id, hint string) {
	defer l.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.reconnect.Min
	bo.MaxInterval = l.reconnect.Max
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		if l.gate.Online(ctx) {
			if l.subscribe(ctx, gen, id) {
				bo.Reset()
			}
		} else {
			l.logger.Debug("backend unreachable, deferring stream connect")
		}

		if ctx.Err() != nil {
			return
		}
		if !l.reconnect.Enabled {
			l.setState(gen, StateDisconnected)
			return
		}

		l.setState(gen, StateConnecting)
		delay := bo.NextBackOff()
		l.logger.Debug("stream reconnect scheduled", zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if id = l.resolve(ctx, hint); id == "" {
			l.logger.Info("driver id gone, giving up on stream")
			l.setState(gen, StateDisconnected)
			return
		}
	}
}

// subscribe holds one connection until it ends. It reports whether the
// connection was ever established.
func (l *Listener) subscribe(ctx context.Context, gen uint64, driverID string) bool {
	if err := l.limiter.Wait(ctx, ratelimiter.RouteStream); err != nil {
		return false
	}

	target, err := url.Parse(l.endpoint)
	if err != nil {
		l.logger.Error("invalid stream endpoint", zap.String("endpoint", l.endpoint), zap.Error(err))
		return false
	}
	q := target.Query()
	q.Set("driver_id", driverID)
	target.RawQuery = q.Encode()

	client := sse.NewClient(target.String())
	client.Connection = l.client
	// One attempt per subscribe; run owns the reconnect policy.
	client.ReconnectStrategy = &backoff.StopBackOff{}

	// The validator runs as soon as response headers arrive; OnConnect
	// would wait for the first event.
	var opened atomic.Bool
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected stream status: %d", resp.StatusCode)
		}
		opened.Store(true)
		l.setState(gen, StateConnected)
		l.hooks.OnConnect()
		l.logger.Info("stream opened")
		return nil
	}

	err = client.SubscribeRawWithContext(ctx, func(ev *sse.Event) {
		l.handle(ctx, gen, ev.Data)
	})

	switch {
	case ctx.Err() != nil:
		// closed by us
	case err != nil:
		l.hooks.OnDisconnect(err)
		l.logger.Warn("stream failed", zap.Error(err))
	default:
		l.hooks.OnDisconnect(nil)
		l.logger.Info("stream ended by server")
	}
	return opened.Load()
}

func (l *Listener) handle(ctx context.Context, gen uint64, data []byte) {
	orders, err := domain.ParseOrders(data)
	if err != nil {
		l.hooks.OnEvent(EventMalformed)
		l.logger.Warn("discarding malformed stream event", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		l.hooks.OnEvent(EventEmpty)
		return
	}

	l.hooks.OnEvent(EventOrders)
	l.logger.Debug("orders pushed", zap.Int("count", len(orders)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		l.logger.Debug("discarding event from a closed stream")
		return
	}
	l.notifier.Notify(ctx, domain.SourceStream, domain.StreamAlertMessage, len(orders))
}

func (l *Listener) setState(gen uint64, s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen {
		l.state = s
	}
}
