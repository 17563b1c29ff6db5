package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Route names an outbound backend endpoint.
type Route string

const (
	RoutePoll   Route = "poll"
	RouteStream Route = "stream"
)

// RouteLimiters holds one token bucket per backend route so a burst of
// manual polls or a flapping stream cannot hammer the backend.
// Burst is set equal to the rate; no saved-up tokens beyond one second.
type RouteLimiters struct {
	limiters map[Route]*rate.Limiter
}

// New creates a RouteLimiters with ratePerSec tokens per second per route.
func New(ratePerSec int) *RouteLimiters {
	r := rate.Limit(ratePerSec)
	return &RouteLimiters{
		limiters: map[Route]*rate.Limiter{
			RoutePoll:   rate.NewLimiter(r, ratePerSec),
			RouteStream: rate.NewLimiter(r, ratePerSec),
		},
	}
}

// Wait blocks until the route's limiter grants a token. A nil receiver or
// an unknown route never blocks. Returns a non-nil error only if ctx is
// cancelled while waiting.
func (rl *RouteLimiters) Wait(ctx context.Context, route Route) error {
	if rl == nil {
		return nil
	}
	l, ok := rl.limiters[route]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
