package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// Enqueuer accepts alerts for asynchronous delivery.
// *queue.AlertQueue satisfies it.
type Enqueuer interface {
	Enqueue(a domain.Alert) error
}

// Hooks carries metric callbacks injected by main. Nil fields are no-ops.
type Hooks struct {
	OnFired      func(source domain.Source)
	OnSuppressed func(source domain.Source)
	OnDropped    func(source domain.Source)
}

// Options configures a Notifier.
type Options struct {
	Cooldown  time.Duration
	TargetURL string
	// Now defaults to time.Now; tests inject a fake clock.
	Now func() time.Time
}

// Notifier owns the "last fired" timestamp shared by the poller and the
// stream listener. At most one alert is accepted per cooldown window,
// whichever channel asks first.
type Notifier struct {
	out       Enqueuer
	cooldown  time.Duration
	targetURL string
	now       func() time.Time
	logger    *zap.Logger
	hooks     Hooks

	mu        sync.Mutex
	lastFired time.Time
}

func New(out Enqueuer, opts Options, logger *zap.Logger, hooks Hooks) *Notifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if hooks.OnFired == nil {
		hooks.OnFired = func(domain.Source) {}
	}
	if hooks.OnSuppressed == nil {
		hooks.OnSuppressed = func(domain.Source) {}
	}
	if hooks.OnDropped == nil {
		hooks.OnDropped = func(domain.Source) {}
	}
	return &Notifier{
		out:       out,
		cooldown:  opts.Cooldown,
		targetURL: opts.TargetURL,
		now:       opts.Now,
		logger:    logger,
		hooks:     hooks,
	}
}

// Notify requests a user-visible alert. It returns false when the call fell
// inside the cooldown window and was dropped silently.
func (n *Notifier) Notify(_ context.Context, source domain.Source, message string, orderCount int) bool {
	now, ok := n.claim()
	if !ok {
		n.hooks.OnSuppressed(source)
		n.logger.Debug("alert suppressed by cooldown", zap.String("source", string(source)))
		return false
	}

	a := domain.Alert{
		ID:         uuid.New().String(),
		Source:     source,
		Message:    message,
		OrderCount: orderCount,
		TargetURL:  n.targetURL,
		CreatedAt:  now.UTC(),
	}

	// The cooldown stamp stands even when the queue is full.
	if err := n.out.Enqueue(a); err != nil {
		n.hooks.OnDropped(source)
		n.logger.Warn("alert dropped", zap.String("alert_id", a.ID), zap.Error(err))
		return true
	}

	n.hooks.OnFired(source)
	n.logger.Info("alert fired",
		zap.String("alert_id", a.ID),
		zap.String("source", string(source)),
		zap.Int("order_count", orderCount),
	)
	return true
}

// claim performs the check-and-set atomically.
func (n *Notifier) claim() (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if !n.lastFired.IsZero() && now.Sub(n.lastFired) <= n.cooldown {
		return now, false
	}
	n.lastFired = now
	return now, true
}

// LastFired returns when the last alert was accepted; zero if never.
func (n *Notifier) LastFired() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastFired
}
