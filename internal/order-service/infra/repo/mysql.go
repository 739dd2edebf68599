package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/jcmexdev/vending-sagas/internal/order-service/core/domain/entity"
	"github.com/jcmexdev/vending-sagas/internal/order-service/core/ports"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

type repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) interface {
	ports.OrderRepository
	ports.MenuRepository
} {
	return &repo{db: db}
}

var getMenuItemQuery = "SELECT id, name, price, coffee_beans, water, milk FROM menus WHERE id = ?"

func (r repo) GetMenuItem(ctx context.Context, id int64) (entity.MenuItem, error) {
	var res entity.MenuItem
	err := r.db.GetContext(ctx, &res, getMenuItemQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.MenuItem{}, entity.ErrMenuNotFound
	}
	return res, err
}

var listMenuQuery = "SELECT id, name, price, coffee_beans, water, milk FROM menus ORDER BY id"

func (r repo) ListMenu(ctx context.Context) ([]entity.MenuItem, error) {
	var res []entity.MenuItem
	err := r.db.SelectContext(ctx, &res, listMenuQuery)
	return res, err
}

var insertOrderQuery = `
	INSERT INTO orders (menu_id, quantity, total_price, change_amount, idempotency_key)
	VALUES (?, ?, ?, ?, ?)`

// CommitOrder inserts the order row exactly once per idempotency key. The
// UNIQUE constraint on idempotency_key turns a replayed commit into a
// duplicate-entry error, which resolves to the existing row's ID.
func (r repo) CommitOrder(ctx context.Context, order entity.Order) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertOrderQuery,
		order.MenuID, order.Quantity, order.TotalPrice, order.ChangeAmount, order.IdempotencyKey)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			existing, found, lookupErr := r.GetByIdempotencyKey(ctx, order.IdempotencyKey)
			if lookupErr != nil {
				return 0, lookupErr
			}
			if found {
				return existing.ID, nil
			}
		}
		return 0, err
	}
	return res.LastInsertId()
}

var getByKeyQuery = `
	SELECT id, menu_id, quantity, total_price, change_amount, idempotency_key, created_at
	FROM orders WHERE idempotency_key = ?`

func (r repo) GetByIdempotencyKey(ctx context.Context, key string) (entity.Order, bool, error) {
	var res entity.Order
	err := r.db.GetContext(ctx, &res, getByKeyQuery, key)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Order{}, false, nil
	}
	if err != nil {
		return entity.Order{}, false, err
	}
	return res, true, nil
}
