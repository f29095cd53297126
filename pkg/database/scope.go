package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by a pooled connection and a transaction.
// Calling Begin on a transaction starts a savepoint.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Scope carries the connection (or transaction) repositories run their queries on.
type Scope struct {
	Conn    Querier
	release func()
}

// Close returns an acquired connection to the pool. Scopes wrapping a
// transaction have nothing to release.
func (s *Scope) Close() {
	if s == nil || s.release == nil {
		return
	}
	s.release()
	s.release = nil
}

// Acquire takes a connection from the pool.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn, release: conn.Release}, nil
}

type contextKey string

// ScopeKey is the context key for storing the database scope.
const ScopeKey contextKey = "dbScope"

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider creates scoped contexts for code that runs outside an HTTP request.
type ScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider for the given database.
func NewScopeProvider(db *DB) *ScopeProvider {
	return &ScopeProvider{db: db}
}

// WithScope returns a context carrying a freshly acquired connection.
// The cleanup function must be called when the scope is no longer needed.
func (p *ScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}
