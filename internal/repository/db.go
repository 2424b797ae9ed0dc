package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"booktrack/pkg/models"
)

// PgConnection is satisfied by *pgxpool.Pool and by pgxmock pools.
type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Transactor runs a function inside one database transaction. Repository
// calls made with the context passed to fn join that transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type transactor struct {
	conn PgConnection
}

// NewTransactor creates a transactor on conn
func NewTransactor(conn PgConnection) Transactor {
	return &transactor{conn: conn}
}

// WithTransaction executes fn within a database transaction. A nested call
// reuses the outer transaction.
func (t *transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.conn.Begin(ctx)
	if err != nil {
		return mapDBError(err, "begin_transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapDBError(err, "commit_transaction")
	}
	return nil
}

// base picks the transaction carried by ctx, falling back to the pool
type base struct {
	conn PgConnection
}

func (b base) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return b.conn
}

// mapDBError classifies pgx and Postgres errors into model error kinds
func mapDBError(err error, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, models.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: %w", operation, models.ErrConflict, err)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: invalid reference: %w: %w", operation, models.ErrInvalidInput, err)
		case "23514", "22P02": // check_violation, invalid_text_representation
			return fmt.Errorf("%s: %w: %w", operation, models.ErrInvalidInput, err)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: concurrent update, retry: %w: %w", operation, models.ErrConflict, err)
		}
	}

	return fmt.Errorf("database error during %s: %w", operation, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
