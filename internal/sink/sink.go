// Package sink delivers accepted alerts to the user. Each capability is
// optional: a sink that cannot vibrate or play sound returns
// domain.ErrUnsupported and the caller moves on.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// Sink is the platform notification surface.
type Sink interface {
	Show(ctx context.Context, a domain.Alert) error
	Vibrate(ctx context.Context, d time.Duration) error
	PlayDefaultSound(ctx context.Context) error
}

// Multi fans every call out to all members in order.
type Multi []Sink

func (m Multi) Show(ctx context.Context, a domain.Alert) error {
	return m.each(func(s Sink) error { return s.Show(ctx, a) })
}

func (m Multi) Vibrate(ctx context.Context, d time.Duration) error {
	return m.each(func(s Sink) error { return s.Vibrate(ctx, d) })
}

func (m Multi) PlayDefaultSound(ctx context.Context) error {
	return m.each(func(s Sink) error { return s.PlayDefaultSound(ctx) })
}

// each returns ErrUnsupported only when no member supports the capability.
// Otherwise real failures are joined and unsupported members are ignored.
func (m Multi) each(call func(Sink) error) error {
	var errs []error
	supported := false
	for _, s := range m {
		err := call(s)
		switch {
		case errors.Is(err, domain.ErrUnsupported):
		case err != nil:
			supported = true
			errs = append(errs, err)
		default:
			supported = true
		}
	}
	if !supported {
		return domain.ErrUnsupported
	}
	return errors.Join(errs...)
}

var _ Sink = Multi(nil)
