// Package connectivity tells the background channels whether the backend
// is reachable at all, so they skip work instead of piling up failures.
package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"
)

// Gate reports whether outbound work should proceed.
type Gate interface {
	Online(ctx context.Context) bool
}

// Always is a Gate that is never closed.
type Always struct{}

func (Always) Online(context.Context) bool { return true }

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Probe dials the backend's TCP address and caches the answer for ttl.
type Probe struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration
	dial    DialFunc
	now     func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	online    bool
}

// NewProbe builds a probe for the host of baseURL. The port defaults from
// the scheme.
func NewProbe(baseURL string, timeout, ttl time.Duration) (*Probe, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	d := &net.Dialer{Timeout: timeout}
	return &Probe{
		addr:    net.JoinHostPort(u.Hostname(), port),
		timeout: timeout,
		ttl:     ttl,
		dial:    d.DialContext,
		now:     time.Now,
	}, nil
}

// WithDialer replaces the dial function; used by tests.
func (p *Probe) WithDialer(dial DialFunc) *Probe {
	p.dial = dial
	return p
}

// Addr is the host:port the probe dials.
func (p *Probe) Addr() string { return p.addr }

func (p *Probe) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checkedAt.IsZero() && p.now().Sub(p.checkedAt) < p.ttl {
		return p.online
	}

	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(dctx, "tcp", p.addr)
	p.online = err == nil
	if conn != nil {
		conn.Close()
	}
	p.checkedAt = p.now()
	return p.online
}
