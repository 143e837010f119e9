// Package postgres opens the durable store connection and applies the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fraudwatch/internal/platform/config"
)

// Open connects to PostgreSQL through the pgx stdlib driver and verifies the
// connection before returning.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// schema is applied on boot. Statements are idempotent so restarts are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS fraud_rules (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		rule_type       TEXT NOT NULL,
		condition       TEXT NOT NULL,
		action_type     TEXT NOT NULL,
		action_message  TEXT NOT NULL DEFAULT '',
		priority        INTEGER NOT NULL,
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		threshold_value NUMERIC,
		string_value    TEXT,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS fraud_rules_name_key ON fraud_rules (lower(name))`,
	`CREATE INDEX IF NOT EXISTS fraud_rules_active_idx ON fraud_rules (priority, id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS transactions (
		transaction_id      TEXT PRIMARY KEY,
		amount              NUMERIC,
		ip_address          TEXT,
		originator_details  JSONB,
		transfer_details    JSONB,
		status              TEXT NOT NULL,
		status_reason       TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_status_idx ON transactions (status)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
