package txn

import (
	"context"
	"database/sql"

	"github.com/finploy/matchbatch"
)

// DefaultTxManager default TransactionManager implementation
type DefaultTxManager struct {
	db *sql.DB
}

// NewTransactionManager create a TransactionManager instance
func NewTransactionManager(db *sql.DB) matchbatch.TransactionManager {
	return &DefaultTxManager{
		db: db,
	}
}

// BeginTx begin a transaction
func (tm *DefaultTxManager) BeginTx(ctx context.Context) (interface{}, matchbatch.BatchError) {
	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "start transaction failed", err)
	}
	return tx, nil
}

// Commit commit a transaction
func (tm *DefaultTxManager) Commit(tx interface{}) matchbatch.BatchError {
	tx1, ok := tx.(*sql.Tx)
	if !ok {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "commit: not a *sql.Tx: %T", tx)
	}
	if err := tx1.Commit(); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "transaction commit failed", err)
	}
	return nil
}

// Rollback rollback a transaction
func (tm *DefaultTxManager) Rollback(tx interface{}) matchbatch.BatchError {
	tx1, ok := tx.(*sql.Tx)
	if !ok {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "rollback: not a *sql.Tx: %T", tx)
	}
	if err := tx1.Rollback(); err != nil && err != sql.ErrTxDone {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "transaction rollback failed", err)
	}
	return nil
}

// Run runs fn inside a transaction, committing when fn succeeds and rolling back otherwise.
func Run(ctx context.Context, tm matchbatch.TransactionManager, fn func(tx *sql.Tx) error) error {
	t, be := tm.BeginTx(ctx)
	if be != nil {
		return be
	}
	tx := t.(*sql.Tx)
	if err := fn(tx); err != nil {
		if rbErr := tm.Rollback(tx); rbErr != nil {
			matchbatch.DefaultLogger.Error(ctx, "rollback failed:%v", rbErr)
		}
		return err
	}
	if be = tm.Commit(tx); be != nil {
		return be
	}
	return nil
}
