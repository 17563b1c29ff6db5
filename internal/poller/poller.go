package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/connectivity"
	"github.com/notifyhub/order-alerts/internal/credential"
	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/ratelimiter"
)

// State is the poller's scheduling state.
type State int32

const (
	StateIdle State = iota
	StateScheduled
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	default:
		return "idle"
	}
}

// Request outcomes reported through Hooks.OnRequest.
const (
	OutcomeOK             = "ok"
	OutcomeTransportError = "transport_error"
	OutcomeBadStatus      = "bad_status"
	OutcomeMalformed      = "malformed"
)

// Skip reasons reported through Hooks.OnSkipped.
const (
	SkipNoIdentifier = "no_identifier"
	SkipOffline      = "offline"
	SkipCookieError  = "cookie_error"
)

const maxBodyBytes = 1 << 20

// Notifier is the part of notifier.Notifier the poller needs.
type Notifier interface {
	Notify(ctx context.Context, source domain.Source, message string, orderCount int) bool
}

// Hooks carries metric callbacks injected by main. Nil fields are no-ops.
type Hooks struct {
	OnTick    func()
	OnSkipped func(reason string)
	OnRequest func(outcome string, latency time.Duration)
}

// Options configures a Poller. Gate and Limiter are optional.
type Options struct {
	Endpoint string
	Interval time.Duration
	Gate     connectivity.Gate
	Limiter  *ratelimiter.RouteLimiters
}

// Poller periodically asks the backend whether the courier has pending
// orders. Each tick reads the identifier fresh and fires its request in a
// separate goroutine; ticks do not wait for earlier requests to finish.
type Poller struct {
	endpoint string
	interval time.Duration
	gate     connectivity.Gate
	limiter  *ratelimiter.RouteLimiters
	client   *http.Client
	cookies  credential.Source
	notifier Notifier
	logger   *zap.Logger
	hooks    Hooks

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc

	wg       sync.WaitGroup
	inFlight atomic.Int32
}

func New(
	opts Options,
	client *http.Client,
	cookies credential.Source,
	n Notifier,
	logger *zap.Logger,
	hooks Hooks,
) *Poller {
	if opts.Gate == nil {
		opts.Gate = connectivity.Always{}
	}
	if hooks.OnTick == nil {
		hooks.OnTick = func() {}
	}
	if hooks.OnSkipped == nil {
		hooks.OnSkipped = func(string) {}
	}
	if hooks.OnRequest == nil {
		hooks.OnRequest = func(string, time.Duration) {}
	}
	return &Poller{
		endpoint: opts.Endpoint,
		interval: opts.Interval,
		gate:     opts.Gate,
		limiter:  opts.Limiter,
		client:   client,
		cookies:  cookies,
		notifier: n,
		logger:   logger,
		hooks:    hooks,
	}
}

// Start arms the repeating timer. The first tick fires immediately.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.gen++
	p.cancel = cancel
	p.state = StateScheduled

	p.wg.Add(1)
	go p.run(ctx, p.gen)

	p.logger.Info("poller started", zap.Duration("interval", p.interval))
}

// Stop cancels the timer and any in-flight request. Responses that still
// arrive afterwards are discarded. Safe to call at any time.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateIdle {
		return
	}

	p.cancel()
	p.gen++
	p.state = StateIdle
	p.logger.Info("poller stopped")
}

// Wait blocks until the timer goroutine and every request goroutine have
// returned. Call after Stop during shutdown.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// State returns the current scheduling state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// InFlight returns the number of requests awaiting a response.
func (p *Poller) InFlight() int {
	return int(p.inFlight.Load())
}

// Poll runs one synchronous check outside the schedule. It returns
// ErrNoIdentifier when no driver cookie is available; backend failures are
// swallowed like on a regular tick.
func (p *Poller) Poll(ctx context.Context) error {
	id, ok, err := credential.ReadDriverID(ctx, p.cookies)
	if err != nil {
		return fmt.Errorf("read cookie: %w", err)
	}
	if !ok {
		return domain.ErrNoIdentifier
	}

	p.check(ctx, id, func(message string) {
		p.notifier.Notify(ctx, domain.SourceManual, message, 0)
	})
	return nil
}

func (p *Poller) run(ctx context.Context, gen uint64) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen)
		}
	}
}

func (p *Poller) tick(ctx context.Context, gen uint64) {
	if !p.transition(gen, StateScheduled, StateRunning) {
		return
	}
	defer p.transition(gen, StateRunning, StateScheduled)

	p.hooks.OnTick()

	if !p.gate.Online(ctx) {
		p.hooks.OnSkipped(SkipOffline)
		p.logger.Debug("backend unreachable, skipping tick")
		return
	}

	id, ok, err := credential.ReadDriverID(ctx, p.cookies)
	if err != nil {
		p.hooks.OnSkipped(SkipCookieError)
		p.logger.Warn("cookie source failed", zap.Error(err))
		return
	}
	if !ok {
		p.hooks.OnSkipped(SkipNoIdentifier)
		p.logger.Debug("no driver_id cookie, skipping tick")
		return
	}

	p.wg.Add(1)
	p.inFlight.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Add(-1)
		p.check(ctx, id, func(message string) {
			p.notifyIfCurrent(ctx, gen, message)
		})
	}()
}

// transition moves from one state to another if gen is still current.
func (p *Poller) transition(gen uint64, from, to State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || p.state != from {
		return false
	}
	p.state = to
	return true
}

// notifyIfCurrent holds the lock across Notify so a concurrent Stop cannot
// slip in between the liveness check and the notification.
func (p *Poller) notifyIfCurrent(ctx context.Context, gen uint64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != gen || p.state == StateIdle {
		p.logger.Debug("discarding response that arrived after stop")
		return
	}
	p.notifier.Notify(ctx, domain.SourcePoll, message, 0)
}

// check performs one GET and calls onSuccess when the backend reports
// pending orders.
func (p *Poller) check(ctx context.Context, driverID string, onSuccess func(message string)) {
	if err := p.limiter.Wait(ctx, ratelimiter.RoutePoll); err != nil {
		return
	}

	target, err := url.Parse(p.endpoint)
	if err != nil {
		p.logger.Error("invalid poll endpoint", zap.String("endpoint", p.endpoint), zap.Error(err))
		return
	}
	q := target.Query()
	q.Set("driver_id", driverID)
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		p.logger.Error("create poll request", zap.Error(err))
		return
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		// Swallowed; the next tick retries.
		p.hooks.OnRequest(OutcomeTransportError, time.Since(start))
		p.logger.Debug("poll request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.hooks.OnRequest(OutcomeBadStatus, time.Since(start))
		p.logger.Debug("unexpected poll status", zap.Int("status", resp.StatusCode))
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		p.hooks.OnRequest(OutcomeTransportError, time.Since(start))
		p.logger.Debug("read poll response", zap.Error(err))
		return
	}

	parsed, err := domain.ParsePendingOrders(body)
	if err != nil {
		p.hooks.OnRequest(OutcomeMalformed, time.Since(start))
		p.logger.Warn("discarding malformed poll response", zap.Error(err))
		return
	}
	p.hooks.OnRequest(OutcomeOK, time.Since(start))

	if parsed.IsSuccess() {
		onSuccess(parsed.Text())
	}
}
