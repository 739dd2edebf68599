package entity

import (
	"errors"
	"time"
)

// ErrMenuNotFound fails an order before any resource is touched.
var ErrMenuNotFound = errors.New("menu item not found")

// ErrInvalidQuantity rejects quantity <= 0 before any side effect.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// ErrInvalidPayment rejects negative payment amounts before any side effect.
var ErrInvalidPayment = errors.New("payment amount must be non-negative")

// MenuItem is immutable reference data: a drink with its unit price and
// per-unit resource requirements.
type MenuItem struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Price       int    `db:"price" json:"price"`
	CoffeeBeans int    `db:"coffee_beans" json:"coffee_beans"`
	Water       int    `db:"water" json:"water"`
	Milk        int    `db:"milk" json:"milk"`
}

// UsageFor scales the per-unit requirements to an order quantity.
func (m MenuItem) UsageFor(quantity int) map[string]int {
	return map[string]int{
		"coffee_beans": m.CoffeeBeans * quantity,
		"water":        m.Water * quantity,
		"milk":         m.Milk * quantity,
	}
}

// Order is the record committed once per successful saga run. Append-only
// history: never mutated or deleted by the saga.
type Order struct {
	ID             int64     `db:"id"`
	MenuID         int64     `db:"menu_id"`
	Quantity       int       `db:"quantity"`
	TotalPrice     int       `db:"total_price"`
	ChangeAmount   int       `db:"change_amount"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

// Receipt is what the customer gets back from a committed order.
type Receipt struct {
	OrderID    int64  `json:"order_id"`
	MenuName   string `json:"menu_name"`
	Quantity   int    `json:"quantity"`
	TotalPrice int    `json:"total_price"`
	Change     int    `json:"change"`
}
