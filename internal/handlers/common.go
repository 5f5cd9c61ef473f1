// Package handlers wires the domain services into outbox.Handler
// implementations per the event routing table (§4.4): each handler
// subscribes to the event types it reacts to, runs its effect inside its
// own transaction, and applies one of the §4.6 idempotency strategies so a
// redelivered event is always safe to replay.
package handlers

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is implemented by *pgxpool.Pool; handlers open one transaction
// per event rather than sharing the dispatcher's connection.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// runInTx begins a transaction on beginner, runs fn, and commits, rolling
// back on any error or panic in fn.
func runInTx(ctx context.Context, beginner TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
