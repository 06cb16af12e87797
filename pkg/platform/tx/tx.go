// Package tx carries a SQL transaction through context so a workflow save and
// its audit outbox row commit together.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes fn inside a unit of work. Stores reached from fn observe the
// same transaction through From.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs units of work in a database/sql transaction. A context that
// already carries a transaction is reused rather than nested.
type SQLRunner struct {
	DB *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{DB: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NopRunner runs fn directly. Used with in-memory stores, which serialise
// writes per subject instead.
type NopRunner struct{}

func (NopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Querier is the part of *sql.DB and *sql.Tx that stores use.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Q returns the transaction carried by ctx, or db.
func Q(ctx context.Context, db *sql.DB) Querier {
	if sqlTx, ok := From(ctx); ok {
		return sqlTx
	}
	return db
}

// Within runs a multi-statement write on the transaction carried by ctx, or
// in a transaction of its own when there is none.
func Within(ctx context.Context, db *sql.DB, fn func(q Querier) error) error {
	if sqlTx, ok := From(ctx); ok {
		return fn(sqlTx)
	}
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}
