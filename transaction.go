package matchbatch

import "context"

// TransactionManager used by stores that apply a batch of writes atomically.
type TransactionManager interface {
	BeginTx(ctx context.Context) (tx interface{}, err BatchError)
	Commit(tx interface{}) BatchError
	Rollback(tx interface{}) BatchError
}
