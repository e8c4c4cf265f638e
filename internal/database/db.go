package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is an interface that can execute queries (pool or transaction)
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connection established")
	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS bikeshare_jobs (
	id           UUID PRIMARY KEY,
	status       TEXT NOT NULL,
	start_date   DATE NOT NULL,
	end_date     DATE NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ,
	error        TEXT NOT NULL DEFAULT '',
	granularity  TEXT NOT NULL DEFAULT '',
	bucket_count INTEGER NOT NULL DEFAULT 0
)`

// Migrate creates the tables the job store needs.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
