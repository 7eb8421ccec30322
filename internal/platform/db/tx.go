package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

const TxKey contextKey = "db_tx"

// TxFromContext returns the transaction opened by WithTx or RunInTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the clinic connection in ctx and returns a
// context carrying it. The caller commits or rolls back.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, TxKey, tx), tx, nil
}

// Transactor runs fn atomically.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PgTransactor opens transactions on the clinic connection when present and
// on the pool otherwise. Nested calls join the outer transaction.
type PgTransactor struct {
	pool Beginner
}

func NewTransactor(pool Beginner) *PgTransactor {
	return &PgTransactor{pool: pool}
}

func (t *PgTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var b Beginner = t.pool
	if conn := ConnFromContext(ctx); conn != nil {
		b = conn
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, TxKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NoopTransactor runs fn directly. Writes made before a failure stay.
type NoopTransactor struct{}

func (NoopTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const undoKey contextKey = "db_undo"

type undoLog struct {
	steps []func()
}

// MemTransactor gives the in-memory store transactions: bodies run one at a
// time and, when fn fails, the undo steps registered through OnRollback run
// in reverse order. Nested calls join the outer transaction.
type MemTransactor struct {
	mu sync.Mutex
}

func NewMemTransactor() *MemTransactor {
	return &MemTransactor{}
}

func (t *MemTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey).(*undoLog); ok {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	undo := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey, undo)); err != nil {
		for i := len(undo.steps) - 1; i >= 0; i-- {
			undo.steps[i]()
		}
		return err
	}
	return nil
}

// OnRollback registers step to run if the MemTransactor transaction in ctx
// fails. Outside such a transaction it does nothing.
func OnRollback(ctx context.Context, step func()) {
	if undo, ok := ctx.Value(undoKey).(*undoLog); ok {
		undo.steps = append(undo.steps, step)
	}
}
