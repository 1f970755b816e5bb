package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolLimits sizes the connection pool per deployment. Zero values fall
// back to defaults sized for a single small Postgres instance shared with
// the suggestion search.
type PoolLimits struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to Postgres and verifies the connection. The ledger is
// write-light and read-bursty (ranking fans out into grouped counts), so
// idle connections are kept around rather than churned.
func Open(ctx context.Context, databaseURL string, limits PoolLimits) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	maxOpen := limits.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 20
	}
	maxIdle := limits.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen / 2
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
