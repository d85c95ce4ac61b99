package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type txKey struct{}

// WithTx attaches an open transaction so stores enlist in it.
func WithTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) (bun.Tx, bool) {
	if ctx == nil {
		return bun.Tx{}, false
	}
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	return tx, ok
}

// IDB returns the transaction carried by ctx, or db when there is none.
func IDB(ctx context.Context, db bun.IDB) bun.IDB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}

type Transactor struct {
	db *bun.DB
}

func NewTransactor(db *bun.DB) (*Transactor, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &Transactor{db: db}, nil
}

// RunInTx commits when fn returns nil and rolls back otherwise. Nested calls
// join the outer transaction.
func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t == nil || t.db == nil {
		return fmt.Errorf("sqlstore: transactor is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction body is required")
	}
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return t.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}
