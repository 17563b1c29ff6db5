package repository

import (
	"context"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 50

// AlertRepository persists delivered alerts.
// The pgx implementation is in pg_alert_repo.go, the SQLite one in
// sqlite_alert_repo.go. Tests use a hand-written mock (mock_alert_repo.go).
type AlertRepository interface {
	Record(ctx context.Context, a *domain.Alert) error
	// Recent returns up to limit alerts, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Alert, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
