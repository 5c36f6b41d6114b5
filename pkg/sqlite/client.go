package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the pure-Go "sqlite" driver with database/sql.
	_ "github.com/glebarez/go-sqlite"
)

// Client wraps an embedded sqlite database
type Client struct {
	db *sql.DB
}

// Config holds sqlite connection configuration
type Config struct {
	// Path is the database file path, or ":memory:" for an in-memory database
	Path string
	// BusyTimeout bounds how long a statement waits on a locked database
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

// NewClient opens the database file, applies pragmas and verifies connectivity
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path must be provided")
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout == 0 {
		busyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	// A single writer keeps sqlite's locking simple; reads share the
	// same connection pool.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Path, err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Debug("opened sqlite database", "path", cfg.Path)
	}

	return &Client{db: db}, nil
}

// EnsureSchema creates the access event table and indexes if absent
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, SchemaAccessEvents); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Exec executes a statement without returning rows
func (c *Client) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Query executes a query and returns rows
func (c *Client) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query expected to return at most one row
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction
func (c *Client) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}
