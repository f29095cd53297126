package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ApplicationName identifies engine sessions in pg_stat_activity.
const ApplicationName = "delphi-engine"

const (
	defaultMaxConns        = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// LockTimeout is sent as the session lock_timeout, bounding the wait on
	// another action's study row lock. Zero keeps the server default.
	LockTimeout time.Duration
}

// Fields describes the effective pool settings for logging, using the
// config.yaml names.
func (c *Config) Fields() []zap.Field {
	pc, err := c.poolConfig()
	if err != nil {
		return []zap.Field{zap.Error(err)}
	}
	return []zap.Field{
		zap.Int32("max_connections", pc.MaxConns),
		zap.Duration("max_conn_lifetime", pc.MaxConnLifetime),
		zap.Duration("max_conn_idle_time", pc.MaxConnIdleTime),
		zap.Duration("lock_timeout", c.LockTimeout),
	}
}

// poolConfig parses the URL and applies defaults and session parameters.
func (c *Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pc.MaxConns = c.MaxConnections
	if pc.MaxConns <= 0 {
		pc.MaxConns = defaultMaxConns
	}
	pc.MaxConnLifetime = c.MaxConnLifetime
	if pc.MaxConnLifetime <= 0 {
		pc.MaxConnLifetime = defaultMaxConnLifetime
	}
	pc.MaxConnIdleTime = c.MaxConnIdleTime
	if pc.MaxConnIdleTime <= 0 {
		pc.MaxConnIdleTime = defaultMaxConnIdleTime
	}

	params := pc.ConnConfig.RuntimeParams
	if params["application_name"] == "" {
		params["application_name"] = ApplicationName
	}
	if c.LockTimeout > 0 {
		params["lock_timeout"] = strconv.FormatInt(c.LockTimeout.Milliseconds(), 10)
	}

	return pc, nil
}

// NewConnection creates the engine's connection pool and verifies it with a ping.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
