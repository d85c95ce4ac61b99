package service

import (
	"context"
	"errors"

	"github.com/goliatone/go-crm/result"
)

// Transactor runs fn inside a store transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactorFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (fn TransactorFunc) RunInTx(ctx context.Context, body func(ctx context.Context) error) error {
	return fn(ctx, body)
}

var errRollback = errors.New("service: rollback on failure")

// WithTransaction wraps next in an all-or-nothing boundary: Success commits,
// Failure rolls back. A commit error turns Success into an internal failure.
func WithTransaction[P any, T any](tx Transactor) Middleware[P, T] {
	if tx == nil {
		panic("service: WithTransaction requires a transactor")
	}
	return func(next Handler[P, T]) Handler[P, T] {
		return func(ctx context.Context, params P) result.Result[T, Failure] {
			var out result.Result[T, Failure]
			ran := false
			err := tx.RunInTx(ctx, func(txCtx context.Context) error {
				ran = true
				out = next(txCtx, params)
				if out.IsFailure() {
					return errRollback
				}
				return nil
			})
			switch {
			case err == nil:
				return out
			case errors.Is(err, errRollback):
				return out
			case ran && out.IsFailure():
				return out
			default:
				return result.Failure[T](InternalFailure(err))
			}
		}
	}
}
