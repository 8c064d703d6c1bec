package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	txcontext "gsid-registry/pkg/platform/tx"
)

var savepointSeq atomic.Uint64

// RunInTx executes fn inside one transaction. The transaction rides the
// context so store methods called from fn automatically join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		// Already transactional; nesting is expressed with Savepoint.
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Savepoint runs fn inside a nested rollback point of the enclosing
// transaction. A failing fn discards only its own writes; the enclosing
// transaction remains usable for subsequent items.
func (s *Store) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return fmt.Errorf("savepoint requires an enclosing transaction")
	}
	name := fmt.Sprintf("item_%d", savepointSeq.Add(1))
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint after %w: %v", err, rbErr)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return fmt.Errorf("release savepoint after %w: %v", err, relErr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
