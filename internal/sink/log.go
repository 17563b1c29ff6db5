package sink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// LogSink writes every capability as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.With(zap.String("sink", "log"))}
}

func (s *LogSink) Show(_ context.Context, a domain.Alert) error {
	s.logger.Info("ALERT",
		zap.String("alert_id", a.ID),
		zap.String("source", string(a.Source)),
		zap.String("message", a.Message),
		zap.Int("order_count", a.OrderCount),
		zap.String("target_url", a.TargetURL),
	)
	return nil
}

func (s *LogSink) Vibrate(_ context.Context, d time.Duration) error {
	s.logger.Info("vibrate", zap.Duration("duration", d))
	return nil
}

func (s *LogSink) PlayDefaultSound(context.Context) error {
	s.logger.Info("play sound")
	return nil
}

var _ Sink = (*LogSink)(nil)
