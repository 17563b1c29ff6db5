package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// Webhook event kinds.
const (
	EventAlert  = "alert"
	EventHaptic = "haptic"
	EventSound  = "sound"
)

// WebhookEvent is the JSON body posted for every capability call.
type WebhookEvent struct {
	Event      string        `json:"event"`
	Alert      *domain.Alert `json:"alert,omitempty"`
	DurationMS int64         `json:"duration_ms,omitempty"`
	SentAt     time.Time     `json:"sent_at"`
}

// WebhookSink forwards alerts to an HTTP endpoint, e.g. a phone push
// gateway. The URL is injected from config so tests can point to a local
// server.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *WebhookSink) Show(ctx context.Context, a domain.Alert) error {
	return s.post(ctx, WebhookEvent{Event: EventAlert, Alert: &a})
}

func (s *WebhookSink) Vibrate(ctx context.Context, d time.Duration) error {
	return s.post(ctx, WebhookEvent{Event: EventHaptic, DurationMS: d.Milliseconds()})
}

func (s *WebhookSink) PlayDefaultSound(ctx context.Context) error {
	return s.post(ctx, WebhookEvent{Event: EventSound})
}

// post expects any 2xx response; the body is ignored.
func (s *WebhookSink) post(ctx context.Context, ev WebhookEvent) error {
	ev.SentAt = time.Now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Event, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send %s event: %w", ev.Event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected webhook status: %d", resp.StatusCode)
	}
	return nil
}

var _ Sink = (*WebhookSink)(nil)
