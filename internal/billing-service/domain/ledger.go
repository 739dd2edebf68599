// Package domain holds the cash ledger owned by the billing service.
// All amounts are non-negative integers in the smallest currency unit;
// the register balance stays >= 0 after every operation.
package domain

import "errors"

var (
	// ErrInsufficientPayment: amount tendered is below the total price.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrInsufficientChange: the register cannot make change it does not have.
	ErrInsufficientChange = errors.New("insufficient change in register")
	// ErrInsufficientFunds: a debit would take the register below zero.
	ErrInsufficientFunds = errors.New("insufficient funds in register")
	// ErrInvalidItem rejects cost postings for unknown items.
	ErrInvalidItem = errors.New("invalid inventory item")
	// ErrAttemptCompensated rejects a charge replayed after its refund.
	// A refunded attempt is finished; replaying the stored change would
	// hand out a receipt for money that is no longer in the register.
	ErrAttemptCompensated = errors.New("attempt already compensated")
)

// UnitCosts is the fixed per-replenishment cost of each inventory item.
var UnitCosts = map[string]int{
	"coffee_beans": 3000,
	"milk":         2000,
	"water":        1000,
}

// Ledger is the single keyed billing row.
type Ledger struct {
	CashRegister  int `db:"cash_register" json:"cash_register"`
	TotalSales    int `db:"total_sales" json:"total_sales"`
	InventoryCost int `db:"inventory_cost" json:"inventory_cost"`
}

// NetProfit is derived, never stored.
func (l Ledger) NetProfit() int {
	return l.TotalSales - l.InventoryCost
}
