package store

import (
	"context"
	"database/sql"
)

// Stores bundles the pipeline stores that change together.
type Stores struct {
	Messages MessageStore
	Tasks    TaskStore
	Pending  PendingStore
}

// WithTx returns the same stores bound to tx.
func (s Stores) WithTx(tx *sql.Tx) Stores {
	return Stores{
		Messages: s.Messages.WithTx(tx),
		Tasks:    s.Tasks.WithTx(tx),
		Pending:  s.Pending.WithTx(tx),
	}
}

// Transactor runs fn with stores that commit or roll back together.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// SQLTransactor implements Transactor with RunInTransaction.
type SQLTransactor struct {
	DB     TxBeginner
	Stores Stores
}

var _ Transactor = (*SQLTransactor)(nil)

// InTx implements Transactor.
func (t *SQLTransactor) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return RunInTransaction(ctx, t.DB, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, t.Stores.WithTx(tx))
	})
}
