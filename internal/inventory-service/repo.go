package inventoryservice

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jcmexdev/vending-sagas/internal/inventory-service/domain"
)

// IRepo is the persistence port for the stock ledger. LockLedgerForUpdate
// and UpdateLedger must run inside Transact so the read-check-write of a
// reservation is one serialized unit — two concurrent Reserve calls must
// never both pass a check their combined debit would violate.
type IRepo interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	GetLedger(ctx context.Context) (domain.Ledger, error)
	LockLedgerForUpdate(ctx context.Context) (domain.Ledger, error)
	UpdateLedger(ctx context.Context, ledger domain.Ledger) error
	IsProcessed(ctx context.Context, operation, key string) (bool, error)
	MarkProcessed(ctx context.Context, operation, key string) error
}

type repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) IRepo {
	return &repo{db: db}
}

type txKey struct{}

// Transact runs fn inside a transaction. The open *sqlx.Tx travels in the
// context so every repo call made from fn hits the same transaction and
// FOR UPDATE locks are held until commit.
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

var getLedgerQuery = "SELECT coffee_beans, water, milk FROM inventory WHERE id = 1"

func (r repo) GetLedger(ctx context.Context) (domain.Ledger, error) {
	var res domain.Ledger
	err := sqlx.GetContext(ctx, r.q(ctx), &res, getLedgerQuery)
	return res, err
}

var lockLedgerQuery = "SELECT coffee_beans, water, milk FROM inventory WHERE id = 1 FOR UPDATE"

func (r repo) LockLedgerForUpdate(ctx context.Context) (domain.Ledger, error) {
	var res domain.Ledger
	err := sqlx.GetContext(ctx, r.q(ctx), &res, lockLedgerQuery)
	return res, err
}

var updateLedgerQuery = "UPDATE inventory SET coffee_beans = ?, water = ?, milk = ? WHERE id = 1"

func (r repo) UpdateLedger(ctx context.Context, ledger domain.Ledger) error {
	_, err := r.q(ctx).ExecContext(ctx, updateLedgerQuery, ledger.CoffeeBeans, ledger.Water, ledger.Milk)
	return err
}

var isProcessedQuery = "SELECT count(*) FROM processed_requests WHERE operation = ? AND idempotency_key = ?"

func (r repo) IsProcessed(ctx context.Context, operation, key string) (bool, error) {
	var res int
	err := sqlx.GetContext(ctx, r.q(ctx), &res, isProcessedQuery, operation, key)
	return res > 0, err
}

var markProcessedQuery = "INSERT INTO processed_requests (operation, idempotency_key) VALUES (?, ?)"

func (r repo) MarkProcessed(ctx context.Context, operation, key string) error {
	_, err := r.q(ctx).ExecContext(ctx, markProcessedQuery, operation, key)
	return err
}
