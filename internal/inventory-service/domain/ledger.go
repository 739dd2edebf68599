// Package domain holds the stock ledger owned by the inventory service.
// The ledger is a single current snapshot per resource, never a
// per-transaction log; every quantity stays >= 0 at all times.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// The fixed resource set. Names match the wire field names.
const (
	CoffeeBeans = "coffee_beans"
	Water       = "water"
	Milk        = "milk"
)

// ResourceNames is the canonical iteration order for the fixed set.
var ResourceNames = []string{CoffeeBeans, Water, Milk}

// ErrInvalidResource rejects resource names outside the fixed set.
var ErrInvalidResource = errors.New("invalid resource name")

// ErrAttemptCompensated rejects a reservation replayed after its release.
// A compensated attempt is finished; resuming it would commit an order
// whose stock debit was already credited back.
var ErrAttemptCompensated = errors.New("attempt already compensated")

// InsufficientStockError names every resource whose available quantity is
// below the requested amount. Reserve reports all deficits at once so the
// caller does not discover them one retry at a time.
type InsufficientStockError struct {
	Deficient []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s", strings.Join(e.Deficient, ", "))
}

// Ledger is the single keyed inventory row.
type Ledger struct {
	CoffeeBeans int `db:"coffee_beans" json:"coffee_beans"`
	Water       int `db:"water" json:"water"`
	Milk        int `db:"milk" json:"milk"`
}

// Get returns the quantity for a valid resource name.
func (l Ledger) Get(name string) int {
	switch name {
	case CoffeeBeans:
		return l.CoffeeBeans
	case Water:
		return l.Water
	case Milk:
		return l.Milk
	}
	return 0
}

// Apply adds delta to the named resource.
func (l *Ledger) Apply(name string, delta int) {
	switch name {
	case CoffeeBeans:
		l.CoffeeBeans += delta
	case Water:
		l.Water += delta
	case Milk:
		l.Milk += delta
	}
}

// ValidResource reports whether name belongs to the fixed set.
func ValidResource(name string) bool {
	switch name {
	case CoffeeBeans, Water, Milk:
		return true
	}
	return false
}
