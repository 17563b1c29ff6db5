package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// sqliteMigrations are applied in order; the schema_version table records
// the highest one applied.
var sqliteMigrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version    INTEGER PRIMARY KEY,
				applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS alerts (
				id          TEXT PRIMARY KEY,
				source      TEXT NOT NULL,
				message     TEXT NOT NULL,
				order_count INTEGER NOT NULL DEFAULT 0,
				target_url  TEXT NOT NULL DEFAULT '',
				created_at  DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at DESC);

			INSERT INTO schema_version (version) VALUES (1);
		`,
	},
}

// SQLiteAlertRepository stores alerts in a local SQLite file.
type SQLiteAlertRepository struct {
	db *sqlx.DB
}

// NewSQLiteAlertRepository opens (or creates) the database at path, enables
// WAL mode and applies pending migrations. ":memory:" is accepted for tests.
func NewSQLiteAlertRepository(path string) (*SQLiteAlertRepository, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// Every pooled connection to ":memory:" would be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	r := &SQLiteAlertRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

func (r *SQLiteAlertRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteAlertRepository) migrate() error {
	current := 0

	var tables int
	err := r.db.Get(&tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tables > 0 {
		if err := r.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		if _, err := r.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (r *SQLiteAlertRepository) Record(ctx context.Context, a *domain.Alert) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO alerts (id, source, message, order_count, target_url, created_at)
		VALUES (:id, :source, :message, :order_count, :target_url, :created_at)`,
		a,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *SQLiteAlertRepository) Recent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	var out []*domain.Alert
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, source, message, order_count, target_url, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return out, nil
}

var _ AlertRepository = (*SQLiteAlertRepository)(nil)
