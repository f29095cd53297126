package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoScope is returned when a context carries no database scope.
var ErrNoScope = errors.New("no database scope in context")

// TxManager runs a function inside a transaction bound to the context.
// Nested calls run inside a savepoint of the enclosing transaction, so a
// failing inner function rolls back only its own writes.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type scopeTxManager struct{}

// NewTxManager returns a TxManager that begins transactions on the context's scope.
func NewTxManager() TxManager {
	return scopeTxManager{}
}

var _ TxManager = scopeTxManager{}

func (scopeTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, ok := GetScope(ctx)
	if !ok {
		return ErrNoScope
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if err := fn(SetScope(ctx, &Scope{Conn: tx})); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
