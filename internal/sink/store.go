package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/notifyhub/order-alerts/internal/domain"
	"github.com/notifyhub/order-alerts/internal/repository"
)

// StoreSink records every shown alert in the alert repository.
type StoreSink struct {
	repo repository.AlertRepository
}

func NewStoreSink(repo repository.AlertRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Show(ctx context.Context, a domain.Alert) error {
	if err := s.repo.Record(ctx, &a); err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}

func (s *StoreSink) Vibrate(context.Context, time.Duration) error {
	return domain.ErrUnsupported
}

func (s *StoreSink) PlayDefaultSound(context.Context) error {
	return domain.ErrUnsupported
}

var _ Sink = (*StoreSink)(nil)
