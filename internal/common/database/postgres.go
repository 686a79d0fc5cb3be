// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"application-tracker/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient is the pool behind the postgres storage driver, which keeps
// each snapshot blob as one row.
type PostgresClient struct {
	DB       *sql.DB
	database string
}

// NewPostgres opens a pool sized for a single interactive session. No
// connection is made until Ping or the first query.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("postgres %s: open: %w", cfg.Database, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	return &PostgresClient{DB: db, database: cfg.Database}, nil
}

// Ping checks the server is reachable and the credentials are accepted.
func (c *PostgresClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres %s unreachable: %w", c.database, err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
