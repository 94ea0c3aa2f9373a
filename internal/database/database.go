package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/blink/internal/config"
)

//go:embed schema.sql
var schema string

var ErrSchemaMissing = errors.New("chat schema is not installed; run the relay server once to create it")

const schemaCheck = `
	SELECT to_regclass('profiles') IS NOT NULL
	   AND to_regclass('messages') IS NOT NULL
	   AND to_regclass('blocks') IS NOT NULL
	   AND to_regclass('reports') IS NOT NULL
	   AND to_regproc('blink_notify_change') IS NOT NULL`

func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the chat tables and the row change triggers that feed
// the realtime listener. Safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// CheckSchema verifies, without any DDL, that EnsureSchema has already run.
// Clients use it so only the server needs privileges to change the schema.
func CheckSchema(ctx context.Context, pool *pgxpool.Pool) error {
	var installed bool
	if err := pool.QueryRow(ctx, schemaCheck).Scan(&installed); err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}
	if !installed {
		return ErrSchemaMissing
	}
	return nil
}
