package postgres

import (
	"context"
	"database/sql"
	"fmt"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/types"
	"github.com/jmoiron/sqlx"
)

// TxKey is the context key of the open transaction
type TxKey struct{}

// Tx is a sqlx transaction that nests through savepoints
type Tx struct {
	*sqlx.Tx
	ID    string
	depth int
}

func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(TxKey{}).(*Tx)
	return tx, ok
}

func (tx *Tx) savepoint() string {
	return fmt.Sprintf("sp_%d", tx.depth)
}

// exec runs a savepoint statement for the current nesting level
func (db *DB) exec(ctx context.Context, tx *Tx, stmt, hint string) error {
	db.logger.Debugw(stmt, "tx_id", tx.ID, "savepoint", tx.savepoint())
	if _, err := tx.ExecContext(ctx, stmt+" "+tx.savepoint()); err != nil {
		return ierr.WithError(err).WithHint(hint).Mark(ierr.ErrDatabase)
	}
	return nil
}

// BeginTx opens a read-committed transaction, or a savepoint inside the one the
// context already carries
func (db *DB) BeginTx(ctx context.Context) (context.Context, *Tx, error) {
	if tx, ok := GetTx(ctx); ok {
		tx.depth++
		if err := db.exec(ctx, tx, "SAVEPOINT", "Failed to create savepoint"); err != nil {
			tx.depth--
			return ctx, nil, err
		}
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ctx, nil, ierr.WithError(err).
			WithHint("Failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}

	tx := &Tx{
		Tx: sqlxTx,
		ID: types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TX),
	}
	db.logger.Debugw("transaction started", "tx_id", tx.ID)
	return context.WithValue(ctx, TxKey{}, tx), tx, nil
}

// CommitTx commits the innermost level of the context's transaction
func (db *DB) CommitTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return ierr.NewError("no transaction in context").Mark(ierr.ErrSystem)
	}

	if tx.depth > 0 {
		err := db.exec(ctx, tx, "RELEASE SAVEPOINT", "Failed to release savepoint")
		tx.depth--
		return err
	}

	db.logger.Debugw("transaction committed", "tx_id", tx.ID)
	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to commit transaction").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// RollbackTx undoes the innermost level of the context's transaction
func (db *DB) RollbackTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return ierr.NewError("no transaction in context").Mark(ierr.ErrSystem)
	}

	if tx.depth > 0 {
		err := db.exec(ctx, tx, "ROLLBACK TO SAVEPOINT", "Failed to roll back savepoint")
		tx.depth--
		return err
	}

	db.logger.Debugw("transaction rolled back", "tx_id", tx.ID)
	if err := tx.Rollback(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to roll back transaction").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// WithTx runs fn inside a transaction. Every write made through the context is
// rolled back when fn returns an error or panics.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			db.logger.Errorw("panic in transaction", "tx_id", tx.ID, "panic", r)
			_ = db.RollbackTx(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := db.RollbackTx(ctx); rbErr != nil {
			db.logger.Errorw("failed to roll back transaction",
				"tx_id", tx.ID,
				"error", rbErr,
				"cause", err)
		}
		return err
	}
	return db.CommitTx(ctx)
}
