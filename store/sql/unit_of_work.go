package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-payments/core"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// TxRunner opens one bun transaction per unit of work.
type TxRunner struct {
	db        *bun.DB
	events    *WebhookEventStore
	customers *CustomerStore
	orders    *OrderStore
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, uow core.UnitOfWork) error) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("sqlstore: tx runner is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: unit of work function is required")
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &unitOfWork{
			events:    r.events.withTx(tx),
			customers: r.customers.withTx(tx),
			orders:    r.orders.withTx(tx),
		})
	})
}

type unitOfWork struct {
	events    *WebhookEventStore
	customers *CustomerStore
	orders    *OrderStore
}

func (u *unitOfWork) Events() core.AdmissionLog {
	return u.events
}

func (u *unitOfWork) Customers() core.CustomerStore {
	return u.customers
}

func (u *unitOfWork) Orders() core.OrderStore {
	return u.orders
}

// lockForUpdate adds FOR UPDATE where the dialect supports row locks.
// SQLite serializes writers at the database level instead.
func lockForUpdate(db bun.IDB, query *bun.SelectQuery) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.PG {
		return query.For("UPDATE")
	}
	return query
}
