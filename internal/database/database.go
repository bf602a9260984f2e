// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection settings. URL, when set, wins over the
// individual fields.
type Config struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// NewPool creates and validates a pgxpool connection pool.
// It retries up to 5 times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		slog.Warn("db connect attempt failed", "attempt", attempt, "max", 5, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return pool, nil
}

// schema is applied idempotently on startup. The facility row exists only to
// be locked by check-in; seq keeps insertion order independent of clock skew.
const schema = `
CREATE TABLE IF NOT EXISTS facility (
	id INT PRIMARY KEY
);
INSERT INTO facility (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS tickets (
	seq           BIGSERIAL,
	id            TEXT PRIMARY KEY,
	plate         TEXT NOT NULL,
	vehicle_class TEXT NOT NULL CHECK (vehicle_class IN ('CAR', 'MOTORCYCLE', 'TRUCK')),
	entry_time    TIMESTAMPTZ NOT NULL,
	exit_time     TIMESTAMPTZ,
	fee           BIGINT,
	CHECK ((exit_time IS NULL) = (fee IS NULL)),
	CHECK (exit_time IS NULL OR exit_time >= entry_time)
);
CREATE INDEX IF NOT EXISTS tickets_active_idx ON tickets (seq) WHERE exit_time IS NULL;
CREATE INDEX IF NOT EXISTS tickets_plate_idx ON tickets (plate);
`

// Migrate creates the tables the ticket store needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
