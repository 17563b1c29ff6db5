package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/credential"
	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/poller"
	"github.com/notifyhub/order-alerts/internal/repository"
	"github.com/notifyhub/order-alerts/internal/stream"
)

// PollController is satisfied by *poller.Poller.
type PollController interface {
	Start(ctx context.Context)
	Stop()
	Poll(ctx context.Context) error
	State() poller.State
	InFlight() int
}

// StreamController is satisfied by *stream.Listener.
type StreamController interface {
	Connect(ctx context.Context, hint string) bool
	Close()
	State() stream.State
}

// Status is the runtime snapshot served by the admin API.
type Status struct {
	Poller        string     `json:"poller"`
	PollsInFlight int        `json:"polls_in_flight"`
	Stream        string     `json:"stream"`
	LastAlertAt   *time.Time `json:"last_alert_at"`
	QueueDepth    int        `json:"queue_depth"`
	StoreEnabled  bool       `json:"store_enabled"`
}

// ControlService lets operators inspect and steer the running alert
// channels. HTTP handlers depend on it, never on the components directly.
type ControlService struct {
	// base outlives individual requests; channels started over HTTP run
	// on it until shutdown.
	base      context.Context
	poller    PollController
	stream    StreamController
	lastFired func() time.Time
	depth     func() int
	repo      repository.AlertRepository
	cookies   credential.Source
	setCookie func(string) error
	logger    *zap.Logger
}

// NewControlService wires the service. repo may be nil when no alert
// store is configured; setCookie may be nil when the cookie source is
// read-only. cookies is the source setCookie writes to.
func NewControlService(
	base context.Context,
	p PollController,
	s StreamController,
	lastFired func() time.Time,
	depth func() int,
	repo repository.AlertRepository,
	cookies credential.Source,
	setCookie func(string) error,
	logger *zap.Logger,
) *ControlService {
	return &ControlService{
		base: base, poller: p, stream: s,
		lastFired: lastFired, depth: depth,
		repo: repo, cookies: cookies, setCookie: setCookie, logger: logger,
	}
}

func (s *ControlService) Status() Status {
	st := Status{
		Poller:        s.poller.State().String(),
		PollsInFlight: s.poller.InFlight(),
		Stream:        s.stream.State().String(),
		QueueDepth:    s.depth(),
		StoreEnabled:  s.repo != nil,
	}
	if last := s.lastFired(); !last.IsZero() {
		utc := last.UTC()
		st.LastAlertAt = &utc
	}
	return st
}

func (s *ControlService) StartPoller() {
	s.logger.Info("poller start requested")
	s.poller.Start(s.base)
}

func (s *ControlService) StopPoller() {
	s.logger.Info("poller stop requested")
	s.poller.Stop()
}

// PollNow runs one check synchronously on the caller's context.
func (s *ControlService) PollNow(ctx context.Context) error {
	return s.poller.Poll(ctx)
}

// ConnectStream (re)opens the stream, using hint when no cookie is
// available. It returns ErrNoIdentifier when neither yields a driver id.
func (s *ControlService) ConnectStream(hint string) error {
	if !s.stream.Connect(s.base, hint) {
		return domain.ErrNoIdentifier
	}
	return nil
}

func (s *ControlService) CloseStream() {
	s.stream.Close()
}

// RecentAlerts lists delivered alerts, newest first.
func (s *ControlService) RecentAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if s.repo == nil {
		return nil, domain.ErrStoreDisabled
	}
	alerts, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}
	return alerts, nil
}

// UpdateCookie replaces the session cookie string, e.g. after a fresh
// login. It reports whether the source now yields a driver id; the next
// poll tick and stream reconnect pick it up.
func (s *ControlService) UpdateCookie(ctx context.Context, cookies string) (bool, error) {
	if s.setCookie == nil || s.cookies == nil {
		return false, domain.ErrUnsupported
	}
	if err := s.setCookie(cookies); err != nil {
		return false, fmt.Errorf("update cookie: %w", err)
	}
	_, ok, err := credential.ReadDriverID(ctx, s.cookies)
	if err != nil {
		return false, fmt.Errorf("update cookie: %w", err)
	}
	s.logger.Info("cookie updated", zap.Bool("driver_id_present", ok))
	return ok, nil
}
