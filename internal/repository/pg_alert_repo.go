package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/order-alerts/internal/domain"
)

type pgAlertRepository struct {
	pool *pgxpool.Pool
}

// NewPgAlertRepository returns an AlertRepository backed by PostgreSQL.
func NewPgAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &pgAlertRepository{pool: pool}
}

func (r *pgAlertRepository) Record(ctx context.Context, a *domain.Alert) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO alerts (id, source, message, order_count, target_url, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.Source, a.Message, a.OrderCount, a.TargetURL, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Redelivery of an alert already recorded.
			return nil
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *pgAlertRepository) Recent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, message, order_count, target_url, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		a := &domain.Alert{}
		if err := rows.Scan(&a.ID, &a.Source, &a.Message, &a.OrderCount, &a.TargetURL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}
