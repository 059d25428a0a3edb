package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/feedbackinsights/pkg/config"
	"github.com/zatekoja/feedbackinsights/pkg/retry"
)

// Client represents a PostgreSQL connection pool
type Client struct {
	db *sql.DB
}

// NewClient opens a PostgreSQL pool. No connection is made until first use
// or Ping; an unreachable server is reported by the calls that need it.
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	return &Client{db: db}, nil
}

// NewClientFromDB wraps an existing pool, e.g. one backed by sqlmock.
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// WaitReady pings the server with backoff. Callers treat failure as a
// warning: the feedback store degrades on its own when the server is down.
func (c *Client) WaitReady(ctx context.Context, cfg retry.Config, pingTimeout time.Duration) error {
	return retry.Do(ctx, cfg, "PostgreSQL", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return c.db.PingContext(pingCtx)
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("PostgreSQL ping failed, retrying")
	})
}

// DB returns the underlying database pool
func (c *Client) DB() *sql.DB {
	return c.db
}

// Conn acquires a dedicated connection from the pool. The caller must Close
// it to return it.
func (c *Client) Conn(ctx context.Context) (*sql.Conn, error) {
	return c.db.Conn(ctx)
}

// Close closes the database pool
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
