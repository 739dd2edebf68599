package ports

import (
	"context"

	"github.com/jcmexdev/vending-sagas/internal/order-service/core/domain/entity"
)

// MenuRepository reads the immutable menu reference data.
type MenuRepository interface {
	GetMenuItem(ctx context.Context, id int64) (entity.MenuItem, error)
	ListMenu(ctx context.Context) ([]entity.MenuItem, error)
}

// OrderRecorder commits the order row at the end of a successful saga.
// CommitOrder is idempotent under the order's idempotency key: a repeated
// commit returns the existing order's ID instead of inserting a duplicate.
type OrderRecorder interface {
	CommitOrder(ctx context.Context, order entity.Order) (int64, error)
}

// OrderRepository is the full persistence port of the order service.
type OrderRepository interface {
	OrderRecorder
	// GetByIdempotencyKey returns a previously committed order for the key,
	// if one exists. Used to replay receipts without re-running the saga.
	GetByIdempotencyKey(ctx context.Context, key string) (entity.Order, bool, error)
}
