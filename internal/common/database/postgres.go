// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inclusion-scoring/internal/common/config"

	_ "github.com/lib/pq"
)

// Schema holds the tables the scoring service writes to and reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS model_registry (
    name           TEXT        NOT NULL,
    version        TEXT        NOT NULL,
    format         TEXT        NOT NULL,
    path           TEXT        NOT NULL,
    features       TEXT[],
    threshold      DOUBLE PRECISION,
    positive_label TEXT,
    negative_label TEXT,
    description    TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (name, version)
);

CREATE TABLE IF NOT EXISTS scoring_audit (
    id            BIGSERIAL   PRIMARY KEY,
    request_id    TEXT        NOT NULL,
    source        TEXT        NOT NULL,
    model_name    TEXT        NOT NULL,
    model_version TEXT        NOT NULL,
    row_count     INTEGER     NOT NULL,
    status        TEXT        NOT NULL,
    error_code    TEXT,
    duration_ms   BIGINT      NOT NULL,
    cache_hit     BOOLEAN     NOT NULL DEFAULT false,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS scoring_audit_created_at_idx ON scoring_audit (created_at);
`

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the registry and audit tables when missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
