// package repositories provides persistence layer implementations for all model types.
//
// Each repository wraps a [DBTX] so the same methods run against the pool or inside a transaction.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
)

// DBTX is the subset of [sql.DB] and [sql.Tx] the repositories need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction and commits when it returns nil.
//
// Transactions begin IMMEDIATE (see [shared.NewDatabase]), so the write lock is held from the first statement.
// Store failures are classified with [shared.Classify].
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return shared.Classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return shared.Classify(err)
	}

	if err := tx.Commit(); err != nil {
		return shared.Classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for entities (e.g., user #42, event #1337).
// Runs as one statement so it composes with an enclosing transaction.
func NextSequence(ctx context.Context, q DBTX, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := q.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}

// affectOne reports [shared.ErrNotFound] when res touched no rows.
func affectOne(res sql.Result, what, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, id)
	}
	return nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, id)
	}
	return fmt.Errorf("failed to query %s: %w", what, err)
}

// optionalTime binds an optional instant as UTC or NULL.
func optionalTime(o models.Optional[time.Time]) any {
	if t, ok := o.Get(); ok {
		return t.UTC()
	}
	return nil
}

func fromNullTime(n sql.NullTime) models.Optional[time.Time] {
	if !n.Valid {
		return models.None[time.Time]()
	}
	return models.Some(n.Time)
}

func optionalString(o models.Optional[string]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

func fromNullString(n sql.NullString) models.Optional[string] {
	if !n.Valid {
		return models.None[string]()
	}
	return models.Some(n.String)
}
