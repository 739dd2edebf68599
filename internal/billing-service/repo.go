package billingservice

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/jcmexdev/vending-sagas/internal/billing-service/domain"
)

// IRepo is the persistence port for the cash ledger. The processed table
// stores the computed change per charge so a replayed Charge returns the
// original result instead of re-debiting the customer.
type IRepo interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	GetLedger(ctx context.Context) (domain.Ledger, error)
	LockLedgerForUpdate(ctx context.Context) (domain.Ledger, error)
	UpdateLedger(ctx context.Context, ledger domain.Ledger) error
	GetProcessed(ctx context.Context, operation, key string) (change int, found bool, err error)
	MarkProcessed(ctx context.Context, operation, key string, change int) error
}

type repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) IRepo {
	return &repo{db: db}
}

type txKey struct{}

func (r repo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r repo) q(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

var getLedgerQuery = "SELECT cash_register, total_sales, inventory_cost FROM billing WHERE id = 1"

func (r repo) GetLedger(ctx context.Context) (domain.Ledger, error) {
	var res domain.Ledger
	err := sqlx.GetContext(ctx, r.q(ctx), &res, getLedgerQuery)
	return res, err
}

var lockLedgerQuery = "SELECT cash_register, total_sales, inventory_cost FROM billing WHERE id = 1 FOR UPDATE"

func (r repo) LockLedgerForUpdate(ctx context.Context) (domain.Ledger, error) {
	var res domain.Ledger
	err := sqlx.GetContext(ctx, r.q(ctx), &res, lockLedgerQuery)
	return res, err
}

var updateLedgerQuery = "UPDATE billing SET cash_register = ?, total_sales = ?, inventory_cost = ? WHERE id = 1"

func (r repo) UpdateLedger(ctx context.Context, ledger domain.Ledger) error {
	_, err := r.q(ctx).ExecContext(ctx, updateLedgerQuery, ledger.CashRegister, ledger.TotalSales, ledger.InventoryCost)
	return err
}

var getProcessedQuery = "SELECT change_amount FROM processed_payments WHERE operation = ? AND idempotency_key = ?"

func (r repo) GetProcessed(ctx context.Context, operation, key string) (int, bool, error) {
	var change int
	err := sqlx.GetContext(ctx, r.q(ctx), &change, getProcessedQuery, operation, key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return change, true, nil
}

var markProcessedQuery = "INSERT INTO processed_payments (operation, idempotency_key, change_amount) VALUES (?, ?, ?)"

func (r repo) MarkProcessed(ctx context.Context, operation, key string, change int) error {
	_, err := r.q(ctx).ExecContext(ctx, markProcessedQuery, operation, key, change)
	return err
}
